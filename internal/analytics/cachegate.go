package analytics

import "time"

// DefaultTTL is the snapshot lifetime used when none is configured.
const DefaultTTL = 72 * time.Hour

// CacheGate decides whether a cached snapshot may be served without a
// provider call.
type CacheGate struct {
	ttl time.Duration
	now func() time.Time
}

// NewCacheGate returns a gate with the given TTL. A non-positive TTL falls
// back to DefaultTTL; a nil clock to time.Now.
func NewCacheGate(ttl time.Duration, now func() time.Time) *CacheGate {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &CacheGate{ttl: ttl, now: now}
}

// TTL returns the configured snapshot lifetime.
func (g *CacheGate) TTL() time.Duration {
	return g.ttl
}

// IsFresh reports whether snapshot exists, has data and is no older than the
// TTL. Missing timestamps and timestamps in the future count as stale.
func (g *CacheGate) IsFresh(snapshot *Snapshot) bool {
	if snapshot == nil || snapshot.Payload.IsEmpty() || snapshot.LastRefreshed.IsZero() {
		return false
	}
	age := g.now().Sub(snapshot.LastRefreshed)
	return age >= 0 && age <= g.ttl
}
