package feedback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaakaind/letsgetcrypto/internal/config"
	"github.com/aaakaind/letsgetcrypto/internal/ml"
)

func testSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		Tier1Interval:        time.Hour,
		Tier2Interval:        24 * time.Hour,
		Tier3Interval:        168 * time.Hour,
		PerformanceThreshold: 0.5,
		ImprovementThreshold: 0.01,
		EvaluationWindow:     10,
		PredictionLogCap:     1000,
		TrendLookback:        3,
		TrainingTimeout:      7 * time.Minute,
	}
}

func TestTierPolicyModelSetsAreStrictSupersets(t *testing.T) {
	policy := NewTierPolicy(testSchedulerConfig())

	prev := map[ml.ModelKind]bool{}
	prevLen := 0
	for _, tier := range AllTiers {
		set := policy.ModelSet(tier)
		require.Greater(t, len(set), prevLen, "each tier must add at least one model")

		for kind := range prev {
			assert.Contains(t, set, kind, "%s must cover everything %s covers", tier, Tier(int(tier)-1))
		}
		prev = map[ml.ModelKind]bool{}
		for _, kind := range set {
			prev[kind] = true
		}
		prevLen = len(set)
	}
}

func TestTierPolicyModelSets(t *testing.T) {
	policy := NewTierPolicy(testSchedulerConfig())

	assert.Equal(t, []ml.ModelKind{ml.ModelLogistic}, policy.ModelSet(Tier1))
	assert.Equal(t, []ml.ModelKind{ml.ModelLogistic, ml.ModelXGBoost}, policy.ModelSet(Tier2))
	assert.Equal(t, []ml.ModelKind{ml.ModelLogistic, ml.ModelXGBoost, ml.ModelLSTM}, policy.ModelSet(Tier3))
	assert.Nil(t, policy.ModelSet(Tier(9)))
}

func TestTierPolicyIntervals(t *testing.T) {
	policy := NewTierPolicy(testSchedulerConfig())

	assert.Equal(t, time.Hour, policy.Interval(Tier1))
	assert.Equal(t, 24*time.Hour, policy.Interval(Tier2))
	assert.Equal(t, 168*time.Hour, policy.Interval(Tier3))
}

func TestParseTier(t *testing.T) {
	for _, want := range AllTiers {
		got, err := ParseTier(want.String())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseTier("tier4")
	assert.Error(t, err)
	_, err = ParseTier("")
	assert.Error(t, err)
}

func TestTierValid(t *testing.T) {
	assert.True(t, Tier1.Valid())
	assert.True(t, Tier3.Valid())
	assert.False(t, Tier(0).Valid())
	assert.False(t, Tier(4).Valid())
}
