package studyconfig

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pro-outcomes-server/internal/domain"
)

type fakeSource struct {
	instrumentCalls int
	rulesCalls      int
	instrument      *domain.Instrument
	rules           *domain.SafetyRuleSet
	err             error
}

func (f *fakeSource) Instrument(ctx context.Context, studyID, instrumentID string) (*domain.Instrument, error) {
	f.instrumentCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.instrument, nil
}

func (f *fakeSource) SafetyRules(ctx context.Context, studyID string) (*domain.SafetyRuleSet, error) {
	f.rulesCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rules, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testSource() *fakeSource {
	return &fakeSource{
		instrument: &domain.Instrument{
			ID:      "phq9",
			Name:    "Patient Health Questionnaire-9",
			Version: 2,
			Method:  domain.ScoringSum,
			Questions: []domain.Question{
				{
					ID:       "phq9_q1",
					Text:     "Little interest or pleasure in doing things",
					Type:     domain.LikertScale,
					Scorable: true,
					Scale:    &domain.ScaleConstraints{Min: 0, Max: 3},
				},
			},
			Range: domain.ClinicalRange{Min: 0, Max: 3},
		},
		rules: &domain.SafetyRuleSet{
			StudyID: "study-001",
			Version: 1,
			PROAlerts: []domain.PROAlertRule{
				{
					ID:           "self-harm",
					InstrumentID: "phq9",
					Condition:    "item:phq9_q1 > 0",
					AlertType:    domain.CoordinatorAlert,
					Urgency:      domain.UrgencyImmediate,
				},
			},
		},
	}
}

func TestCachedProvider_MemoryHit(t *testing.T) {
	source := testSource()
	provider, err := NewCachedProvider(source, nil, ProviderConfig{}, testLogger())
	require.NoError(t, err)

	ctx := context.Background()

	first, err := provider.Instrument(ctx, "study-001", "phq9")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Version)
	assert.Equal(t, 1, source.instrumentCalls)

	// Second lookup must be served from memory
	second, err := provider.Instrument(ctx, "study-001", "phq9")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, source.instrumentCalls, "Source should not be hit again")

	stats := provider.GetCacheStats()
	assert.Equal(t, int64(1), stats.MemoryHits)
	assert.Equal(t, int64(1), stats.SourceLoads)
}

func TestCachedProvider_MemoryExpiry(t *testing.T) {
	source := testSource()
	provider, err := NewCachedProvider(source, nil, ProviderConfig{
		MemoryTTL: time.Millisecond,
	}, testLogger())
	require.NoError(t, err)

	ctx := context.Background()

	_, err = provider.SafetyRules(ctx, "study-001")
	require.NoError(t, err)
	assert.Equal(t, 1, source.rulesCalls)

	time.Sleep(5 * time.Millisecond)

	_, err = provider.SafetyRules(ctx, "study-001")
	require.NoError(t, err)
	assert.Equal(t, 2, source.rulesCalls, "Expired entry should fall through to source")
}

func TestCachedProvider_SourceError(t *testing.T) {
	source := testSource()
	source.err = domain.ErrNotFound
	provider, err := NewCachedProvider(source, nil, ProviderConfig{}, testLogger())
	require.NoError(t, err)

	_, err = provider.Instrument(context.Background(), "study-001", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	stats := provider.GetCacheStats()
	assert.Equal(t, int64(1), stats.ErrorCount)
}

func TestCachedProvider_Invalidate(t *testing.T) {
	source := testSource()
	provider, err := NewCachedProvider(source, nil, ProviderConfig{}, testLogger())
	require.NoError(t, err)

	ctx := context.Background()

	_, err = provider.Instrument(ctx, "study-001", "phq9")
	require.NoError(t, err)
	_, err = provider.SafetyRules(ctx, "study-001")
	require.NoError(t, err)

	require.NoError(t, provider.Invalidate(ctx, "study-001"))

	_, err = provider.Instrument(ctx, "study-001", "phq9")
	require.NoError(t, err)
	assert.Equal(t, 2, source.instrumentCalls, "Invalidated instrument should reload from source")

	_, err = provider.SafetyRules(ctx, "study-001")
	require.NoError(t, err)
	assert.Equal(t, 2, source.rulesCalls, "Invalidated rules should reload from source")
}

func TestCachedProvider_RequiresSource(t *testing.T) {
	_, err := NewCachedProvider(nil, nil, ProviderConfig{}, testLogger())
	assert.Error(t, err)
}
