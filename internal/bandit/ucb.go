package bandit

import (
	"math"

	"traffic-decision-engine/internal/rules"
)

// UCB1 picks the variant maximizing rate + sqrt(2·ln(total+1)/own), with
// own impressions floored at 1. Deterministic, so unplayed variants win on
// their unbounded-looking confidence term first.
type UCB1 struct{}

func (UCB1) Name() string { return "ucb1" }

func (UCB1) Select(variants []rules.Variant) int {
	var total int64
	for _, v := range variants {
		total += v.Impressions
	}

	best, bestScore := 0, math.Inf(-1)
	for i, v := range variants {
		own := v.Impressions
		if own < 1 {
			own = 1
		}
		score := rate(v) + math.Sqrt(2*math.Log(float64(total+1))/float64(own))
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}
