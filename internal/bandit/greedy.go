package bandit

import (
	"math/rand"
	"sync"

	"traffic-decision-engine/internal/rules"
)

// EpsilonGreedy explores uniformly with probability Epsilon and otherwise
// exploits the variant with the highest empirical conversion rate.
type EpsilonGreedy struct {
	Epsilon float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewEpsilonGreedy(epsilon float64, rng *rand.Rand) *EpsilonGreedy {
	return &EpsilonGreedy{Epsilon: epsilon, rng: rng}
}

func (e *EpsilonGreedy) Name() string { return "epsilon_greedy" }

func (e *EpsilonGreedy) Select(variants []rules.Variant) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.Epsilon > 0 && e.rng.Float64() < e.Epsilon {
		return e.rng.Intn(len(variants))
	}
	best, bestRate := 0, -1.0
	for i, v := range variants {
		if r := rate(v); r > bestRate {
			best, bestRate = i, r
		}
	}
	return best
}
