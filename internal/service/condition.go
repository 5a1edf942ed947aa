package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pro-outcomes-server/internal/domain"
)

// The safety condition grammar is deliberately small and explicit:
//
//	condition := variable operator literal
//	variable  := "total" | "item:" questionID | "subscale:" name | questionID
//	operator  := ">" | ">=" | "<" | "<=" | "=="
//	literal   := decimal number
//
// A bare identifier that is not "total" refers to an item, so authored rules
// like "phq9_q9 > 0" read naturally. Anything outside the grammar is a
// configuration error surfaced to study operators, never a skipped rule.

// VariableKind identifies what a condition variable refers to.
type VariableKind string

const (
	VarTotal    VariableKind = "total"
	VarItem     VariableKind = "item"
	VarSubscale VariableKind = "subscale"
)

// Condition is one parsed safety-rule condition.
type Condition struct {
	Kind      VariableKind
	Name      string // question ID or subscale name; empty for total
	Op        domain.ComparisonOperator
	Threshold float64

	// Text is the original condition string, kept for audit output.
	Text string
}

// ParseCondition parses a condition string against the grammar above.
func ParseCondition(text string) (*Condition, error) {
	fields := strings.Fields(text)
	if len(fields) != 3 {
		return nil, domain.NewConfigurationError(text,
			"condition must have the form \"<variable> <operator> <number>\"", nil)
	}

	cond := &Condition{Text: text}

	variable := fields[0]
	switch {
	case variable == "total":
		cond.Kind = VarTotal
	case strings.HasPrefix(variable, "item:"):
		cond.Kind = VarItem
		cond.Name = strings.TrimPrefix(variable, "item:")
	case strings.HasPrefix(variable, "subscale:"):
		cond.Kind = VarSubscale
		cond.Name = strings.TrimPrefix(variable, "subscale:")
	default:
		// Bare identifier reads as an item reference.
		cond.Kind = VarItem
		cond.Name = variable
	}
	if cond.Kind != VarTotal && cond.Name == "" {
		return nil, domain.NewConfigurationError(text, "condition variable has an empty name", nil)
	}

	cond.Op = domain.ComparisonOperator(fields[1])
	if !cond.Op.IsValid() {
		return nil, domain.NewConfigurationError(text,
			fmt.Sprintf("unknown operator %q", fields[1]), nil)
	}

	threshold, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return nil, domain.NewConfigurationError(text,
			fmt.Sprintf("literal %q is not a number", fields[2]), err)
	}
	cond.Threshold = threshold

	return cond, nil
}

// Resolve looks up the condition's variable in a score result. A variable
// that names an unknown item or subscale is a configuration error: the rule
// was authored against a different instrument version.
func (c *Condition) Resolve(score *domain.ScoreResult) (float64, error) {
	switch c.Kind {
	case VarTotal:
		return score.Total, nil
	case VarItem:
		v, ok := score.ItemValue(c.Name)
		if !ok {
			return 0, domain.NewConfigurationError(c.Text,
				fmt.Sprintf("condition references unknown or unscored item %q", c.Name), nil)
		}
		return float64(v), nil
	case VarSubscale:
		v, ok := score.SubscaleValue(c.Name)
		if !ok {
			return 0, domain.NewConfigurationError(c.Text,
				fmt.Sprintf("condition references unknown subscale %q", c.Name), nil)
		}
		return v, nil
	default:
		return 0, domain.NewConfigurationError(c.Text, "unknown variable kind", nil)
	}
}

// Evaluate resolves the variable and applies the comparison, returning the
// match outcome and the observed value.
func (c *Condition) Evaluate(score *domain.ScoreResult) (matched bool, observed float64, err error) {
	observed, err = c.Resolve(score)
	if err != nil {
		return false, 0, err
	}
	return c.Op.Compare(observed, c.Threshold), observed, nil
}
