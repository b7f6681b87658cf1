package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jonathan/curator/internal/scoring"
	"github.com/jonathan/curator/internal/store"
	"github.com/jonathan/curator/internal/types"
	"github.com/jonathan/curator/internal/urlnorm"
)

// signalSource gathers scoring signals, caching per-host artifact counts for a while
// since many candidates of a run share a host.
type signalSource struct {
	artifacts store.ArtifactStore
	feeds     store.FeedStore
	hosts     *expirable.LRU[string, int]
}

func newSignalSource(st store.Store, size int, ttl time.Duration) *signalSource {
	return &signalSource{
		artifacts: st,
		feeds:     st,
		hosts:     expirable.NewLRU[string, int](size, nil, ttl),
	}
}

func (s *signalSource) gather(ctx context.Context, c *types.Candidate) (scoring.Signals, error) {
	var sig scoring.Signals

	if host := urlnorm.Host(c.URL); host != "" {
		n, ok := s.hosts.Get(host)
		if !ok {
			var err error
			n, err = s.artifacts.CountArtifactsByHost(ctx, host)
			if err != nil {
				return sig, fmt.Errorf("failed to count artifacts for %s: %w", host, err)
			}
			s.hosts.Add(host, n)
		}
		sig.HostArtifactCount = n
	}

	if c.SourceKind == types.SourceFeed && c.SourceRef != nil {
		n, err := s.feeds.FeedStoryCountForItem(ctx, *c.SourceRef)
		if err != nil {
			return sig, fmt.Errorf("failed to load feed track record: %w", err)
		}
		sig.FeedStoryCount = n
	}
	return sig, nil
}

// forget drops the cached count of host, e.g. after publishing to it.
func (s *signalSource) forget(host string) {
	s.hosts.Remove(host)
}
