package apiclient

import (
	"golang.org/x/time/rate"

	"salescast/internal/config"
)

// newLimiter creates a rate limiter from config, falling back to the
// default rate and burst for unset values.
func newLimiter(rps float64, burst int) *rate.Limiter {
	def := config.Default().Server
	if rps <= 0 {
		rps = def.RPS
	}
	if burst <= 0 {
		burst = def.Burst
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
