package domain

import (
	"encoding/json"
	"time"
)

// DurationValue is the structured answer to a duration_input question.
type DurationValue struct {
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

// Response is a participant's answer to a single question. Value arrives as
// decoded JSON; its legal shape is determined entirely by the paired
// question's variant (a number, a string, a set of strings, or a structured
// duration object). Responses are created fresh per submission and never
// mutated after creation.
type Response struct {
	QuestionID string `json:"question_id" validate:"required"`
	Value      any    `json:"value"`
}

// IsEmpty reports whether the response carries no answer at all. Empty is
// legal only for questions marked optional.
func (r *Response) IsEmpty() bool {
	switch v := r.Value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	default:
		return false
	}
}

// AsNumber interprets the value as a number. JSON decoding yields float64 for
// all numerics; json.Number is accepted for callers that decode with UseNumber.
func (r *Response) AsNumber() (float64, bool) {
	switch v := r.Value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// AsString interprets the value as a string.
func (r *Response) AsString() (string, bool) {
	s, ok := r.Value.(string)
	return s, ok
}

// AsStringSet interprets the value as a set of strings. Duplicates collapse
// silently; order is not preserved beyond first occurrence.
func (r *Response) AsStringSet() ([]string, bool) {
	switch v := r.Value.(type) {
	case []string:
		return dedupe(v), true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return dedupe(out), true
	default:
		return nil, false
	}
}

// AsDuration interprets the value as an {amount, unit} duration object.
func (r *Response) AsDuration() (*DurationValue, bool) {
	switch v := r.Value.(type) {
	case DurationValue:
		return &v, true
	case *DurationValue:
		return v, true
	case map[string]any:
		amount, ok := numberField(v, "amount")
		if !ok {
			return nil, false
		}
		unit, ok := v["unit"].(string)
		if !ok {
			return nil, false
		}
		return &DurationValue{Amount: amount, Unit: unit}, true
	default:
		return nil, false
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func numberField(m map[string]any, key string) (float64, bool) {
	raw, ok := m[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Submission bundles one participant's raw answers to one instrument,
// together with the identifiers the surrounding platform needs for
// persistence and notification routing.
type Submission struct {
	ID            string     `json:"id" validate:"required"`
	StudyID       string     `json:"study_id" validate:"required"`
	ParticipantID string     `json:"participant_id" validate:"required"`
	InstrumentID  string     `json:"instrument_id" validate:"required"`
	Responses     []Response `json:"responses"`
	SubmittedAt   time.Time  `json:"submitted_at"`
}

// ResponseByQuestionID returns the response answering the given question,
// if present. Later duplicates for the same question are ignored.
func (s *Submission) ResponseByQuestionID(id string) (*Response, bool) {
	for i := range s.Responses {
		if s.Responses[i].QuestionID == id {
			return &s.Responses[i], true
		}
	}
	return nil, false
}

// LabValues are externally supplied laboratory results keyed by marker name
// (e.g., "ALT"). They are optional; safety evaluation skips lab rules when no
// values are supplied.
type LabValues map[string]float64
