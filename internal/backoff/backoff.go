// Package backoff holds the shared retry/poll timing helper.
package backoff

import (
	"math/rand"
	"time"
)

// Jitter spreads a base interval over 0.5x–1.5x so many edges polling the
// same central store don't synchronize their retries.
func Jitter(base time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	factor := 0.5 + rand.Float64() // 0.5x–1.5x
	return time.Duration(float64(base) * factor)
}
