package feedback

import (
	"fmt"
	"time"

	"github.com/aaakaind/letsgetcrypto/internal/config"
	"github.com/aaakaind/letsgetcrypto/internal/ml"
)

// Tier identifies one of the three escalating retraining tiers.
// Higher tiers retrain less often but cover more models.
type Tier int

const (
	Tier1 Tier = 1
	Tier2 Tier = 2
	Tier3 Tier = 3
)

// AllTiers lists tiers in escalation order, cheapest first.
var AllTiers = []Tier{Tier1, Tier2, Tier3}

func (t Tier) String() string {
	return fmt.Sprintf("tier%d", int(t))
}

// Valid reports whether t is one of the three known tiers.
func (t Tier) Valid() bool {
	return t >= Tier1 && t <= Tier3
}

// ParseTier converts a tier name like "tier2" to a Tier.
func ParseTier(s string) (Tier, error) {
	for _, t := range AllTiers {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown tier: %q", s)
}

// TierPolicy maps each tier to its retraining interval and model set.
// Model sets are strict supersets: every model covered by a tier is
// also covered by all higher tiers.
type TierPolicy struct {
	intervals map[Tier]time.Duration
}

// NewTierPolicy builds a policy from validated scheduler config.
func NewTierPolicy(cfg config.SchedulerConfig) *TierPolicy {
	return &TierPolicy{
		intervals: map[Tier]time.Duration{
			Tier1: cfg.Tier1Interval,
			Tier2: cfg.Tier2Interval,
			Tier3: cfg.Tier3Interval,
		},
	}
}

// Interval returns the retraining interval for the given tier.
func (p *TierPolicy) Interval(t Tier) time.Duration {
	return p.intervals[t]
}

// ModelSet returns the models a tier retrains, in training order.
func (p *TierPolicy) ModelSet(t Tier) []ml.ModelKind {
	switch t {
	case Tier1:
		return []ml.ModelKind{ml.ModelLogistic}
	case Tier2:
		return []ml.ModelKind{ml.ModelLogistic, ml.ModelXGBoost}
	case Tier3:
		return []ml.ModelKind{ml.ModelLogistic, ml.ModelXGBoost, ml.ModelLSTM}
	default:
		return nil
	}
}
