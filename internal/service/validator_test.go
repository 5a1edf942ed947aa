package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pro-outcomes-server/internal/domain"
)

func TestValidateAllWellFormed(t *testing.T) {
	v := NewResponseValidator(testLogger())

	failures := v.ValidateAll(phq9(), uniformResponses(phq9(), 2))
	assert.Empty(t, failures)
}

func TestValidateAllMissingRequiredAnswer(t *testing.T) {
	v := NewResponseValidator(testLogger())
	ins := phq9()

	// Drop item 5; exactly one failure, for that question, no others.
	responses := uniformResponses(ins, 1)
	responses = append(responses[:4], responses[5:]...)

	failures := v.ValidateAll(ins, responses)
	require.Len(t, failures, 1)
	assert.Equal(t, "phq9_q5", failures[0].QuestionID)
	assert.Equal(t, domain.MissingRequiredAnswer, failures[0].Kind)
}

func TestValidateAllCollectsEveryFailure(t *testing.T) {
	v := NewResponseValidator(testLogger())
	ins := phq9()

	responses := uniformResponses(ins, 1)
	responses[0].Value = float64(9)  // out of range
	responses[1].Value = "often"     // wrong type
	responses = responses[:7]        // q8, q9 missing
	responses = append(responses, domain.Response{QuestionID: "ghost", Value: float64(1)})

	failures := v.ValidateAll(ins, responses)
	require.Len(t, failures, 5)

	kinds := make(map[domain.FailureKind]int)
	for _, f := range failures {
		kinds[f.Kind]++
	}
	assert.Equal(t, 1, kinds[domain.OrphanResponse])
	assert.Equal(t, 1, kinds[domain.OutOfRange])
	assert.Equal(t, 1, kinds[domain.WrongValueType])
	assert.Equal(t, 2, kinds[domain.MissingRequiredAnswer])
}

func TestValidateAllOptionalQuestionMayBeEmpty(t *testing.T) {
	v := NewResponseValidator(testLogger())
	ins := phq9()
	ins.Questions = append(ins.Questions, domain.Question{
		ID:       "notes",
		Text:     "Anything else?",
		Type:     domain.TextInput,
		Optional: true,
	})

	failures := v.ValidateAll(ins, uniformResponses(phq9(), 0))
	assert.Empty(t, failures)
}

func TestValidateSingleChoice(t *testing.T) {
	v := NewResponseValidator(testLogger())
	q := &domain.Question{
		ID: "mood", Text: "Mood today", Type: domain.SingleChoice, Scorable: true,
		Options: []domain.Option{
			{Value: "low", Weight: 0},
			{Value: "ok", Weight: 1},
			{Value: "good", Weight: 2},
		},
	}

	assert.Nil(t, v.Validate(q, &domain.Response{QuestionID: "mood", Value: "ok"}))

	f := v.Validate(q, &domain.Response{QuestionID: "mood", Value: "great"})
	require.NotNil(t, f)
	assert.Equal(t, domain.UnknownOption, f.Kind)

	f = v.Validate(q, &domain.Response{QuestionID: "mood", Value: float64(1)})
	require.NotNil(t, f)
	assert.Equal(t, domain.WrongValueType, f.Kind)
}

func TestValidateMultipleChoice(t *testing.T) {
	v := NewResponseValidator(testLogger())
	q := &domain.Question{
		ID: "symptoms", Text: "Symptoms this week", Type: domain.MultipleChoice, Scorable: true,
		Options: []domain.Option{
			{Value: "headache", Weight: 1},
			{Value: "nausea", Weight: 1},
			{Value: "fatigue", Weight: 1},
		},
	}

	// Duplicates collapse silently.
	assert.Nil(t, v.Validate(q, &domain.Response{
		QuestionID: "symptoms",
		Value:      []any{"headache", "headache", "fatigue"},
	}))

	f := v.Validate(q, &domain.Response{QuestionID: "symptoms", Value: []any{"headache", "vertigo"}})
	require.NotNil(t, f)
	assert.Equal(t, domain.UnknownOption, f.Kind)
}

func TestValidateScale(t *testing.T) {
	v := NewResponseValidator(testLogger())
	q := &domain.Question{
		ID: "pain", Text: "Pain right now", Type: domain.VisualAnalogScale, Scorable: true,
		Scale: &domain.ScaleConstraints{Min: 0, Max: 100, Step: 5},
	}

	assert.Nil(t, v.Validate(q, &domain.Response{QuestionID: "pain", Value: float64(45)}))

	f := v.Validate(q, &domain.Response{QuestionID: "pain", Value: float64(101)})
	require.NotNil(t, f)
	assert.Equal(t, domain.OutOfRange, f.Kind)

	f = v.Validate(q, &domain.Response{QuestionID: "pain", Value: float64(42)})
	require.NotNil(t, f)
	assert.Equal(t, domain.StepMismatch, f.Kind)

	f = v.Validate(q, &domain.Response{QuestionID: "pain", Value: float64(42.5)})
	require.NotNil(t, f)
	assert.Equal(t, domain.WrongValueType, f.Kind)
}

func TestValidateNumberBounds(t *testing.T) {
	v := NewResponseValidator(testLogger())
	min, max := 30.0, 250.0
	q := &domain.Question{
		ID: "weight", Text: "Weight in kg", Type: domain.NumberInput,
		Bounds: &domain.NumberBounds{Min: &min, Max: &max},
	}

	assert.Nil(t, v.Validate(q, &domain.Response{QuestionID: "weight", Value: float64(82.5)}))

	f := v.Validate(q, &domain.Response{QuestionID: "weight", Value: float64(12)})
	require.NotNil(t, f)
	assert.Equal(t, domain.OutOfRange, f.Kind)
}

func TestValidateTime(t *testing.T) {
	v := NewResponseValidator(testLogger())
	q := &domain.Question{ID: "bedtime", Text: "Usual bedtime", Type: domain.TimeInput}

	assert.Nil(t, v.Validate(q, &domain.Response{QuestionID: "bedtime", Value: "23:15"}))

	for _, bad := range []string{"25:00", "9pm", "23:75", ""} {
		f := v.Validate(q, &domain.Response{QuestionID: "bedtime", Value: bad})
		require.NotNil(t, f, "expected %q to be rejected", bad)
		assert.Equal(t, domain.MalformedTime, f.Kind)
	}
}

func TestValidateDate(t *testing.T) {
	v := NewResponseValidator(testLogger())
	v.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }
	q := &domain.Question{
		ID: "onset", Text: "Symptom onset date", Type: domain.DateInput, NoFutureDates: true,
	}

	assert.Nil(t, v.Validate(q, &domain.Response{QuestionID: "onset", Value: "2026-08-29"}))

	f := v.Validate(q, &domain.Response{QuestionID: "onset", Value: "2026-02-30"})
	require.NotNil(t, f)
	assert.Equal(t, domain.MalformedDate, f.Kind)

	f = v.Validate(q, &domain.Response{QuestionID: "onset", Value: "2026-09-01"})
	require.NotNil(t, f)
	assert.Equal(t, domain.FutureDate, f.Kind)
}

func TestValidateDuration(t *testing.T) {
	v := NewResponseValidator(testLogger())
	q := &domain.Question{
		ID: "sleep", Text: "Hours slept", Type: domain.DurationInput,
		DurationUnits: []string{"hours", "minutes"},
	}

	assert.Nil(t, v.Validate(q, &domain.Response{
		QuestionID: "sleep",
		Value:      map[string]any{"amount": float64(7.5), "unit": "hours"},
	}))

	f := v.Validate(q, &domain.Response{
		QuestionID: "sleep",
		Value:      map[string]any{"amount": float64(-1), "unit": "hours"},
	})
	require.NotNil(t, f)
	assert.Equal(t, domain.NegativeDuration, f.Kind)

	f = v.Validate(q, &domain.Response{
		QuestionID: "sleep",
		Value:      map[string]any{"amount": float64(3), "unit": "fortnights"},
	})
	require.NotNil(t, f)
	assert.Equal(t, domain.UnsupportedUnit, f.Kind)

	f = v.Validate(q, &domain.Response{QuestionID: "sleep", Value: "7 hours"})
	require.NotNil(t, f)
	assert.Equal(t, domain.MalformedDuration, f.Kind)
}

func TestValidateText(t *testing.T) {
	v := NewResponseValidator(testLogger())
	q := &domain.Question{ID: "notes", Text: "Describe your week", Type: domain.TextInput}

	assert.Nil(t, v.Validate(q, &domain.Response{QuestionID: "notes", Value: "mostly fine"}))

	f := v.Validate(q, &domain.Response{QuestionID: "notes", Value: "   "})
	require.NotNil(t, f)
	assert.Equal(t, domain.EmptyText, f.Kind)
}
