// Package dedupe throttles repeated log lines for values that rarely
// change, the way pkg/utils/pretty.ChangeMonitor does in the upstream
// Karpenter tree this module's scheduling core is adapted from.
package dedupe

import (
	"time"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/patrickmn/go-cache"
)

// ChangeMonitor reports whether a keyed value has changed since the last
// time it was observed, so callers can log only on transitions instead of
// on every tick. Observations expire after ttl to bound memory and to
// avoid suppressing a log line forever if a key goes quiet and comes back.
type ChangeMonitor struct {
	lastSeen *cache.Cache
}

// NewChangeMonitor returns a ChangeMonitor whose observations expire after
// ttl (24h/12h cleanup if ttl <= 0).
func NewChangeMonitor(ttl time.Duration) *ChangeMonitor {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ChangeMonitor{lastSeen: cache.New(ttl, ttl/2)}
}

// HasChanged hashes value and compares it against the hash last recorded
// for key, returning true (and recording the new hash) if they differ or
// if key has not been seen before.
func (c *ChangeMonitor) HasChanged(key string, value any) bool {
	hv, _ := hashstructure.Hash(value, hashstructure.FormatV2, &hashstructure.HashOptions{SlicesAsSets: true})
	existing, ok := c.lastSeen.Get(key)
	var existingHash uint64
	if ok {
		existingHash = existing.(uint64)
	}
	if !ok || existingHash != hv {
		c.lastSeen.SetDefault(key, hv)
		return true
	}
	return false
}
