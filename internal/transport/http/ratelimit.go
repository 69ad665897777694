package http

import "golang.org/x/time/rate"

// newControlLimiter returns the per-connection limiter for room switch
// messages. A non-positive perSecond disables limiting.
func newControlLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
