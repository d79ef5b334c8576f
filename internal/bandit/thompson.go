package bandit

import (
	"math"
	"math/rand"
	"sync"

	"traffic-decision-engine/internal/rules"
)

// Thompson implements Thompson sampling: draw one sample per variant from
// Beta(alpha, beta) and pick the largest. Repeated calls on identical state
// intentionally differ; the stochastic draw is the exploration mechanism.
type Thompson struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewThompson(rng *rand.Rand) *Thompson {
	return &Thompson{rng: rng}
}

func (t *Thompson) Name() string { return "thompson" }

func (t *Thompson) Select(variants []rules.Variant) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	best, bestSample := 0, -1.0
	for i, v := range variants {
		alpha, beta := v.Alpha, v.Beta
		if alpha <= 0 {
			alpha = 1
		}
		if beta <= 0 {
			beta = 1
		}
		if s := t.sampleBeta(alpha, beta); s > bestSample {
			best, bestSample = i, s
		}
	}
	return best
}

// sampleBeta draws Beta(a, b) as Ga/(Ga+Gb) with unit-scale gamma draws.
func (t *Thompson) sampleBeta(a, b float64) float64 {
	ga := t.sampleGamma(a)
	gb := t.sampleGamma(b)
	if ga+gb == 0 {
		return 0.5
	}
	return ga / (ga + gb)
}

// sampleGamma draws Gamma(shape, 1) with the Marsaglia–Tsang method.
// Shapes below 1 are lifted to shape+1 and corrected by u^(1/shape).
func (t *Thompson) sampleGamma(shape float64) float64 {
	if shape < 1 {
		u := t.rng.Float64()
		for u == 0 {
			u = t.rng.Float64()
		}
		return t.sampleGamma(shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9.0*d)
	for {
		var x, v float64
		for {
			x = t.rng.NormFloat64()
			v = 1.0 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := t.rng.Float64()
		if u < 1.0-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1.0-v+math.Log(v)) {
			return d * v
		}
	}
}
