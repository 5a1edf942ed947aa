package domain

import (
	"errors"
	"fmt"
)

// Option represents one selectable answer for a choice-type question.
// The weight is the numeric contribution the option carries when the
// question is scorable.
type Option struct {
	Value  string `json:"value" validate:"required"`
	Label  string `json:"label"`
	Weight int    `json:"weight"`
}

// ScaleConstraints bound numeric-scale, likert-scale and visual-analog-scale
// answers. Step, when non-zero, must evenly divide (value - min).
type ScaleConstraints struct {
	Min    int               `json:"min"`
	Max    int               `json:"max"`
	Step   int               `json:"step,omitempty"`
	Labels map[string]string `json:"labels,omitempty"`
}

// NumberBounds optionally bound free numeric input.
type NumberBounds struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Question represents a single item of a clinical instrument. Questions are
// authored once per study version and are read-only inputs to every
// evaluation; the variant-specific constraint fields are only meaningful for
// the matching Type.
type Question struct {
	ID       string       `json:"id" validate:"required"`
	Text     string       `json:"text" validate:"required"`
	Type     QuestionType `json:"type" validate:"required"`
	Scorable bool         `json:"scorable"`
	Optional bool         `json:"optional"`

	// Reverse marks a reverse-scored item: its contribution is
	// max - value + min, per the instrument's documentation.
	Reverse bool `json:"reverse,omitempty"`

	// Choice variants
	Options []Option `json:"options,omitempty"`

	// Scale variants
	Scale *ScaleConstraints `json:"scale,omitempty"`

	// Free numeric input
	Bounds *NumberBounds `json:"bounds,omitempty"`

	// Date input
	NoFutureDates bool `json:"no_future_dates,omitempty"`

	// Duration input: accepted units, e.g. "minutes", "hours". Empty means
	// any unit is accepted.
	DurationUnits []string `json:"duration_units,omitempty"`
}

// Validate ensures the question definition is internally consistent.
// Instrument definitions come from upstream content-generation tooling, so
// every malformed field must be caught here rather than surfacing mid-scoring.
func (q *Question) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("question validation: %w", errors.New("ID is required"))
	}

	if q.Text == "" {
		return fmt.Errorf("question validation (%s): %w", q.ID, errors.New("text is required"))
	}

	if !q.Type.IsValid() {
		return fmt.Errorf("question validation (%s): %w: %q", q.ID, ErrInvalidQuestionType, q.Type)
	}

	if q.Scorable && !q.Type.IsScorableType() {
		return fmt.Errorf("question validation (%s): %w", q.ID,
			fmt.Errorf("type %s cannot be scorable", q.Type))
	}

	switch q.Type {
	case SingleChoice, MultipleChoice, YesNo:
		if len(q.Options) == 0 {
			return fmt.Errorf("question validation (%s): %w", q.ID,
				errors.New("choice question requires at least one option"))
		}
		seen := make(map[string]bool, len(q.Options))
		for _, opt := range q.Options {
			if opt.Value == "" {
				return fmt.Errorf("question validation (%s): %w", q.ID,
					errors.New("option value is required"))
			}
			if seen[opt.Value] {
				return fmt.Errorf("question validation (%s): %w", q.ID,
					fmt.Errorf("duplicate option value %q", opt.Value))
			}
			seen[opt.Value] = true
		}
		if q.Type == YesNo && len(q.Options) != 2 {
			return fmt.Errorf("question validation (%s): %w", q.ID,
				errors.New("yes_no question requires exactly two options"))
		}
	case NumericScale, LikertScale, VisualAnalogScale:
		if q.Scale == nil {
			return fmt.Errorf("question validation (%s): %w", q.ID,
				errors.New("scale question requires scale constraints"))
		}
		if q.Scale.Max <= q.Scale.Min {
			return fmt.Errorf("question validation (%s): %w", q.ID,
				fmt.Errorf("scale max (%d) must exceed min (%d)", q.Scale.Max, q.Scale.Min))
		}
		if q.Scale.Step < 0 {
			return fmt.Errorf("question validation (%s): %w", q.ID,
				errors.New("scale step must not be negative"))
		}
	case NumberInput:
		if q.Bounds != nil && q.Bounds.Min != nil && q.Bounds.Max != nil && *q.Bounds.Max < *q.Bounds.Min {
			return fmt.Errorf("question validation (%s): %w", q.ID,
				errors.New("number bounds max must not be below min"))
		}
	}

	if q.Reverse && q.Scale == nil && len(q.Options) == 0 {
		return fmt.Errorf("question validation (%s): %w", q.ID,
			errors.New("reverse scoring requires a scale or options to define the item range"))
	}

	return nil
}

// OptionByValue returns the option matching the given value, if any.
func (q *Question) OptionByValue(value string) (*Option, bool) {
	for i := range q.Options {
		if q.Options[i].Value == value {
			return &q.Options[i], true
		}
	}
	return nil, false
}

// ItemRange returns the minimum and maximum numeric contribution the question
// can produce, used for reverse scoring and range checks. The second return
// is false for non-scorable questions.
func (q *Question) ItemRange() (min, max int, ok bool) {
	if !q.Scorable {
		return 0, 0, false
	}
	switch q.Type {
	case NumericScale, LikertScale, VisualAnalogScale:
		if q.Scale == nil {
			return 0, 0, false
		}
		return q.Scale.Min, q.Scale.Max, true
	case SingleChoice, MultipleChoice, YesNo:
		if len(q.Options) == 0 {
			return 0, 0, false
		}
		min, max = q.Options[0].Weight, q.Options[0].Weight
		for _, opt := range q.Options[1:] {
			if opt.Weight < min {
				min = opt.Weight
			}
			if opt.Weight > max {
				max = opt.Weight
			}
		}
		return min, max, true
	default:
		return 0, 0, false
	}
}

// Subscale names an aggregation over a subset of an instrument's questions.
type Subscale struct {
	Name        string        `json:"name" validate:"required"`
	QuestionIDs []string      `json:"question_ids" validate:"required"`
	Method      ScoringMethod `json:"method,omitempty"`
}

// ClinicalRange documents the legal total range of an instrument
// (e.g., PHQ-9 total is 0..27). A computed total outside this range is an
// internal consistency error, never a participant error.
type ClinicalRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Instrument represents a named, versioned questionnaire with a defined
// scoring algorithm. Instruments are immutable for the lifetime of a study
// version; any change must produce a new version.
type Instrument struct {
	ID        string        `json:"id" validate:"required"`
	Name      string        `json:"name" validate:"required"`
	Version   int           `json:"version"`
	Method    ScoringMethod `json:"method" validate:"required"`
	Questions []Question    `json:"questions" validate:"required"`
	Subscales []Subscale    `json:"subscales,omitempty"`
	Range     ClinicalRange `json:"range"`
}

// Validate ensures the instrument definition is internally consistent:
// every question validates, IDs are unique, subscales reference known
// questions, and the documented range is sane.
func (ins *Instrument) Validate() error {
	if ins.ID == "" {
		return fmt.Errorf("instrument validation: %w", errors.New("ID is required"))
	}

	if ins.Name == "" {
		return fmt.Errorf("instrument validation (%s): %w", ins.ID, errors.New("name is required"))
	}

	if !ins.Method.IsValid() {
		return fmt.Errorf("instrument validation (%s): %w: %q", ins.ID, ErrInvalidScoring, ins.Method)
	}

	if len(ins.Questions) == 0 {
		return fmt.Errorf("instrument validation (%s): %w", ins.ID,
			errors.New("instrument requires at least one question"))
	}

	ids := make(map[string]bool, len(ins.Questions))
	for i := range ins.Questions {
		q := &ins.Questions[i]
		if err := q.Validate(); err != nil {
			return fmt.Errorf("instrument validation (%s): %w", ins.ID, err)
		}
		if ids[q.ID] {
			return fmt.Errorf("instrument validation (%s): %w", ins.ID,
				fmt.Errorf("duplicate question ID %q", q.ID))
		}
		ids[q.ID] = true
	}

	for _, sub := range ins.Subscales {
		if sub.Name == "" {
			return fmt.Errorf("instrument validation (%s): %w", ins.ID,
				errors.New("subscale name is required"))
		}
		if len(sub.QuestionIDs) == 0 {
			return fmt.Errorf("instrument validation (%s): %w", ins.ID,
				fmt.Errorf("subscale %q has no questions", sub.Name))
		}
		if sub.Method != "" && !sub.Method.IsValid() {
			return fmt.Errorf("instrument validation (%s): %w: subscale %q", ins.ID,
				ErrInvalidScoring, sub.Name)
		}
		for _, qid := range sub.QuestionIDs {
			if !ids[qid] {
				return fmt.Errorf("instrument validation (%s): %w", ins.ID,
					fmt.Errorf("subscale %q references unknown question %q", sub.Name, qid))
			}
		}
	}

	if ins.Range.Max < ins.Range.Min {
		return fmt.Errorf("instrument validation (%s): %w", ins.ID,
			errors.New("clinical range max must not be below min"))
	}

	return nil
}

// QuestionByID returns the question with the given ID, if present.
func (ins *Instrument) QuestionByID(id string) (*Question, bool) {
	for i := range ins.Questions {
		if ins.Questions[i].ID == id {
			return &ins.Questions[i], true
		}
	}
	return nil, false
}

// ScorableQuestionIDs returns, in declaration order, the IDs of every
// question that contributes to the total.
func (ins *Instrument) ScorableQuestionIDs() []string {
	ids := make([]string, 0, len(ins.Questions))
	for i := range ins.Questions {
		if ins.Questions[i].Scorable {
			ids = append(ids, ins.Questions[i].ID)
		}
	}
	return ids
}
