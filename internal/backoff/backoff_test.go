package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJitter_StaysInRange(t *testing.T) {
	base := time.Minute
	for i := 0; i < 1000; i++ {
		d := Jitter(base)
		assert.GreaterOrEqual(t, d, base/2)
		assert.LessOrEqual(t, d, base*3/2)
	}
}

func TestJitter_NonPositiveBaseDefaults(t *testing.T) {
	d := Jitter(0)
	assert.GreaterOrEqual(t, d, 500*time.Millisecond)
	assert.LessOrEqual(t, d, 1500*time.Millisecond)
}
