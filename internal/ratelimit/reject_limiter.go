// Package ratelimit provides the cluster-wide cap on lease rejections used
// by MachineState.ExpireLimitedLeases.
package ratelimit

import "golang.org/x/time/rate"

// RejectLimiter enforces a cap on how many leases may be rejected
// (time-expired past leaseOfferExpirySecs) across the whole cluster per
// tick. A limiter returning false is not an error: the lease in question
// simply remains and is retried on a later tick.
type RejectLimiter struct {
	limiter *rate.Limiter
}

// NewRejectLimiter returns a RejectLimiter allowing up to burst
// rejections instantaneously, refilling at ratePerSecond per second.
func NewRejectLimiter(ratePerSecond float64, burst int) *RejectLimiter {
	return &RejectLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// TryReject reports whether the caller may reject one more lease right
// now, consuming one token if so.
func (r *RejectLimiter) TryReject() bool {
	return r.limiter.Allow()
}

// Unlimited returns a RejectLimiter that never denies a rejection.
func Unlimited() *RejectLimiter {
	return &RejectLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
}
