// Package ratelimit provides token-bucket rate limiting keyed by client or agent.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Keyed holds one token bucket per key, all sharing the same rate and burst. It is
// used to space out external calls per agent without blocking unrelated agents.
type Keyed struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	entries map[string]*entry
}

// NewKeyed creates buckets that refill one token every interval. A non-positive
// interval disables limiting.
func NewKeyed(interval time.Duration, burst int) *Keyed {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	if burst < 1 {
		burst = 1
	}
	return &Keyed{
		limit:   limit,
		burst:   burst,
		entries: make(map[string]*entry),
	}
}

func (k *Keyed) get(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.entries[key] = e
	}
	e.lastAccess = time.Now()
	return e.limiter
}

// Wait blocks until key may proceed or ctx is done.
func (k *Keyed) Wait(ctx context.Context, key string) error {
	return k.get(key).Wait(ctx)
}

// Allow reports whether key may proceed now, consuming a token if so.
func (k *Keyed) Allow(key string) bool {
	return k.get(key).Allow()
}

// Prune drops buckets not used since cutoff and returns how many were removed.
func (k *Keyed) Prune(cutoff time.Time) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	removed := 0
	for key, e := range k.entries {
		if e.lastAccess.Before(cutoff) {
			delete(k.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
