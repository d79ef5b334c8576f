// Package bandit selects one variant of a weighted-redirect rule using a
// pluggable online-learning policy. Selection reads the belief state synced
// from the central store; belief updates happen centrally via /postback.
package bandit

import (
	"math/rand"
	"time"

	"traffic-decision-engine/internal/rules"
)

// Policy picks the index of one variant. Implementations must tolerate
// variants with zero impressions and zero-valued priors.
type Policy interface {
	Name() string
	Select(variants []rules.Variant) int
}

// New returns the policy for the given name, defaulting to Thompson
// sampling for unrecognized names.
func New(name string) Policy {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	switch name {
	case "epsilon_greedy":
		return NewEpsilonGreedy(0.1, rng)
	case "ucb1":
		return UCB1{}
	default:
		return NewThompson(rng)
	}
}

func rate(v rules.Variant) float64 {
	if v.Impressions == 0 {
		return 0
	}
	return float64(v.Conversions) / float64(v.Impressions)
}
