// Package dedup decides whether a discovered URL is already known to an agent.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/curator/internal/urlnorm"
)

// RejectionWindow is how long a rejected URL stays blocked for the same agent.
const RejectionWindow = 7 * 24 * time.Hour

// Lookup is the read-only storage the deduplicator queries.
type Lookup interface {
	ArtifactExists(ctx context.Context, normalizedURL string) (bool, error)
	CandidateExists(ctx context.Context, agentID uuid.UUID, normalizedURL string) (bool, error)
	RecentlyRejected(ctx context.Context, agentID uuid.UUID, normalizedURL string, since time.Time) (bool, error)
}

// Deduplicator checks URLs against published artifacts and an agent's candidates.
type Deduplicator struct {
	lookup Lookup
	now    func() time.Time
}

// New creates a Deduplicator backed by lookup.
func New(lookup Lookup) *Deduplicator {
	return &Deduplicator{lookup: lookup, now: time.Now}
}

// WithClock returns a copy that uses now as its clock.
func (d *Deduplicator) WithClock(now func() time.Time) *Deduplicator {
	return &Deduplicator{lookup: d.lookup, now: now}
}

// IsDuplicate reports whether rawURL is already published, already a candidate of
// agentID, or was rejected for agentID within RejectionWindow.
func (d *Deduplicator) IsDuplicate(ctx context.Context, agentID uuid.UUID, rawURL string) (bool, error) {
	normalized := urlnorm.Normalize(rawURL)

	published, err := d.lookup.ArtifactExists(ctx, normalized)
	if err != nil {
		return false, fmt.Errorf("failed to check artifacts for %s: %w", normalized, err)
	}
	if published {
		return true, nil
	}

	known, err := d.lookup.CandidateExists(ctx, agentID, normalized)
	if err != nil {
		return false, fmt.Errorf("failed to check candidates for %s: %w", normalized, err)
	}
	if known {
		return true, nil
	}

	rejected, err := d.lookup.RecentlyRejected(ctx, agentID, normalized, d.now().Add(-RejectionWindow))
	if err != nil {
		return false, fmt.Errorf("failed to check rejections for %s: %w", normalized, err)
	}
	return rejected, nil
}
