package domain

import (
	"strings"
	"testing"
)

func validPHQ9Question(id string) Question {
	return Question{
		ID:       id,
		Text:     "Little interest or pleasure in doing things",
		Type:     LikertScale,
		Scorable: true,
		Scale:    &ScaleConstraints{Min: 0, Max: 3, Step: 1},
	}
}

func TestQuestionValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(q *Question)
		wantErr string
	}{
		{"valid", func(q *Question) {}, ""},
		{"missing ID", func(q *Question) { q.ID = "" }, "ID is required"},
		{"missing text", func(q *Question) { q.Text = "" }, "text is required"},
		{"unknown type", func(q *Question) { q.Type = "slider" }, "invalid question type"},
		{"scorable free text", func(q *Question) {
			q.Type = TextInput
			q.Scale = nil
		}, "cannot be scorable"},
		{"scale missing constraints", func(q *Question) { q.Scale = nil }, "requires scale constraints"},
		{"inverted scale", func(q *Question) { q.Scale = &ScaleConstraints{Min: 3, Max: 0} }, "must exceed"},
		{"negative step", func(q *Question) { q.Scale = &ScaleConstraints{Min: 0, Max: 3, Step: -1} }, "step must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := validPHQ9Question("phq9_q1")
			tt.mutate(&q)
			err := q.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestQuestionValidateChoices(t *testing.T) {
	q := Question{
		ID:       "q1",
		Text:     "How often?",
		Type:     SingleChoice,
		Scorable: true,
		Options: []Option{
			{Value: "never", Label: "Never", Weight: 0},
			{Value: "often", Label: "Often", Weight: 2},
		},
	}
	if err := q.Validate(); err != nil {
		t.Fatalf("Expected valid single choice, got %v", err)
	}

	q.Options = append(q.Options, Option{Value: "never", Weight: 1})
	if err := q.Validate(); err == nil || !strings.Contains(err.Error(), "duplicate option") {
		t.Fatalf("Expected duplicate option error, got %v", err)
	}

	yn := Question{
		ID:       "q2",
		Text:     "Any pain today?",
		Type:     YesNo,
		Scorable: true,
		Options: []Option{
			{Value: "yes", Weight: 1},
			{Value: "no", Weight: 0},
			{Value: "maybe", Weight: 0},
		},
	}
	if err := yn.Validate(); err == nil || !strings.Contains(err.Error(), "exactly two") {
		t.Fatalf("Expected yes_no arity error, got %v", err)
	}
}

func TestQuestionItemRange(t *testing.T) {
	scale := validPHQ9Question("q1")
	min, max, ok := scale.ItemRange()
	if !ok || min != 0 || max != 3 {
		t.Fatalf("Expected range [0,3], got [%d,%d] ok=%v", min, max, ok)
	}

	choice := Question{
		ID: "q2", Text: "x", Type: SingleChoice, Scorable: true,
		Options: []Option{
			{Value: "a", Weight: 4},
			{Value: "b", Weight: 1},
			{Value: "c", Weight: 2},
		},
	}
	min, max, ok = choice.ItemRange()
	if !ok || min != 1 || max != 4 {
		t.Fatalf("Expected range [1,4], got [%d,%d] ok=%v", min, max, ok)
	}

	text := Question{ID: "q3", Text: "x", Type: TextInput}
	if _, _, ok := text.ItemRange(); ok {
		t.Fatal("Expected no range for non-scorable question")
	}
}

func TestInstrumentValidate(t *testing.T) {
	ins := Instrument{
		ID:      "phq9",
		Name:    "PHQ-9",
		Version: 1,
		Method:  ScoringSum,
		Questions: []Question{
			validPHQ9Question("phq9_q1"),
			validPHQ9Question("phq9_q2"),
		},
		Subscales: []Subscale{
			{Name: "somatic", QuestionIDs: []string{"phq9_q1"}},
		},
		Range: ClinicalRange{Min: 0, Max: 6},
	}
	if err := ins.Validate(); err != nil {
		t.Fatalf("Expected valid instrument, got %v", err)
	}

	dup := ins
	dup.Questions = []Question{validPHQ9Question("phq9_q1"), validPHQ9Question("phq9_q1")}
	if err := dup.Validate(); err == nil || !strings.Contains(err.Error(), "duplicate question ID") {
		t.Fatalf("Expected duplicate question error, got %v", err)
	}

	badSub := ins
	badSub.Subscales = []Subscale{{Name: "somatic", QuestionIDs: []string{"missing"}}}
	if err := badSub.Validate(); err == nil || !strings.Contains(err.Error(), "unknown question") {
		t.Fatalf("Expected unknown subscale question error, got %v", err)
	}
}

func TestInstrumentScorableQuestionIDs(t *testing.T) {
	ins := Instrument{
		ID: "mix", Name: "Mixed", Method: ScoringSum,
		Questions: []Question{
			validPHQ9Question("q1"),
			{ID: "q2", Text: "notes", Type: TextInput},
			validPHQ9Question("q3"),
		},
		Range: ClinicalRange{Min: 0, Max: 6},
	}
	ids := ins.ScorableQuestionIDs()
	if len(ids) != 2 || ids[0] != "q1" || ids[1] != "q3" {
		t.Fatalf("Expected [q1 q3], got %v", ids)
	}
}
