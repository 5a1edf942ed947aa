package domain

import "time"

// ScoreResult is the outcome of scoring one validated submission against one
// instrument. Totals accumulate in exact integer arithmetic; a mean-aggregated
// instrument performs a single final division so no floating-point
// accumulation error can move a clinical total across an integer cutoff.
type ScoreResult struct {
	InstrumentID      string             `json:"instrument_id"`
	InstrumentVersion int                `json:"instrument_version"`

	// Total is the instrument-level aggregate. For sum-scored instruments it
	// is an exact integer value.
	Total float64 `json:"total"`

	// Subscales maps subscale name to its aggregate.
	Subscales map[string]float64 `json:"subscales,omitempty"`

	// Raw maps question ID to the item's normalized integer contribution,
	// after reverse scoring.
	Raw map[string]int `json:"raw"`

	ScoredAt time.Time `json:"scored_at"`
}

// ItemValue returns the raw contribution of a question, if it was scored.
func (sr *ScoreResult) ItemValue(questionID string) (int, bool) {
	v, ok := sr.Raw[questionID]
	return v, ok
}

// SubscaleValue returns a subscale aggregate, if computed.
func (sr *ScoreResult) SubscaleValue(name string) (float64, bool) {
	v, ok := sr.Subscales[name]
	return v, ok
}

// LogFields returns structured logging fields for audit trails.
func (sr *ScoreResult) LogFields() map[string]any {
	return map[string]any{
		"instrument_id":      sr.InstrumentID,
		"instrument_version": sr.InstrumentVersion,
		"total":              sr.Total,
		"item_count":         len(sr.Raw),
		"subscale_count":     len(sr.Subscales),
	}
}
