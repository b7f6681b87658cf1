package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/curator/internal/types"
)

// FeedSource is the read side of the feed store.
type FeedSource interface {
	ListAssignedSources(ctx context.Context, agent *types.Agent) ([]types.FeedSource, error)
	ListUnprocessedItems(ctx context.Context, feedID uuid.UUID) ([]types.FeedItem, error)
}

// FeedProvider turns unprocessed items of an agent's feeds into candidates.
type FeedProvider struct {
	feeds FeedSource
	recorder
}

// NewFeedProvider creates a FeedProvider.
func NewFeedProvider(feeds FeedSource, candidates CandidateWriter, dedup Deduplicator) *FeedProvider {
	return &FeedProvider{
		feeds: feeds,
		recorder: recorder{
			candidates: candidates,
			dedup:      dedup,
			logger:     slog.Default().With("system", "search", "provider", "feed"),
			now:        time.Now,
		},
	}
}

// WithClock sets the clock used for the age filter and timestamps.
func (p *FeedProvider) WithClock(now func() time.Time) *FeedProvider {
	p.now = now
	return p
}

// Name implements Provider.
func (p *FeedProvider) Name() string { return string(types.SourceFeed) }

// FindCandidates implements Provider.
func (p *FeedProvider) FindCandidates(ctx context.Context, agent *types.Agent, run *types.Run) (int, error) {
	sources, err := p.feeds.ListAssignedSources(ctx, agent)
	if err != nil {
		return 0, fmt.Errorf("failed to list feed sources: %w", err)
	}

	maxAge := time.Duration(agent.Search.MaxAgeHours) * time.Hour
	now := p.now()
	created := 0

	for _, source := range sources {
		if !source.Active {
			continue
		}
		items, err := p.feeds.ListUnprocessedItems(ctx, source.ID)
		if err != nil {
			return created, fmt.Errorf("failed to list items of feed %s: %w", source.ID, err)
		}

		found := 0
		for i := range items {
			item := &items[i]
			if !item.Status.Unprocessed() || item.OlderThan(maxAge, now) {
				continue
			}
			if !matchesAny(item.Title+" "+item.Content, agent.Search.RequiredKeywords) {
				continue
			}

			ref := item.ID
			ok, err := p.record(ctx, agent, run, types.SourceFeed, &ref, item.URL, item.Title, item.Content)
			if err != nil {
				return created, fmt.Errorf("failed to record feed item %s: %w", item.ID, err)
			}
			if ok {
				found++
			}
		}

		created += found
		p.logger.Debug("scanned feed", "agent", agent.ID, "feed", source.Name, "items", len(items), "candidates", found)
	}

	p.logger.Info("feed search finished", "agent", agent.ID, "run", run.ID, "candidates", created)
	return created, nil
}
