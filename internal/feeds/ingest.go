package feeds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/curator/internal/metrics"
	"github.com/jonathan/curator/internal/types"
	"github.com/jonathan/curator/internal/urlnorm"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"
)

// Item limits
const (
	MaxContentChars = 5000
	MaxTitleChars   = 500
	MaxGUIDChars    = 500
)

// DefaultConcurrency is how many feeds are fetched at once.
const DefaultConcurrency = 4

// Store is the persistence the ingester needs.
type Store interface {
	ListDueFeedSources(ctx context.Context, now time.Time) ([]types.FeedSource, error)
	InsertFeedItem(ctx context.Context, item *types.FeedItem) (bool, error)
	RecordFetch(ctx context.Context, feedID uuid.UUID, at time.Time, fetchErr string) error
	ArtifactExists(ctx context.Context, normalizedURL string) (bool, error)
}

// Summary counts the outcome of one ingestion pass.
type Summary struct {
	Sources    int
	Failed     int
	NewItems   int
	Duplicates int
	Skipped    int
}

func (s *Summary) add(o Summary) {
	s.Failed += o.Failed
	s.NewItems += o.NewItems
	s.Duplicates += o.Duplicates
	s.Skipped += o.Skipped
}

// Ingester fetches due feed sources and stores their new entries.
type Ingester struct {
	store       Store
	client      *http.Client
	concurrency int
	now         func() time.Time
	log         *slog.Logger
}

// NewIngester creates an Ingester. A nil client gets the default retrying client.
func NewIngester(store Store, client *http.Client, concurrency int) *Ingester {
	if client == nil {
		client = NewHTTPClient(DefaultClientOptions())
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Ingester{
		store:       store,
		client:      client,
		concurrency: concurrency,
		now:         time.Now,
		log:         slog.Default().With("system", "feeds"),
	}
}

// WithClock sets the clock used for due checks and fetch timestamps.
func (in *Ingester) WithClock(now func() time.Time) *Ingester {
	in.now = now
	return in
}

// IngestDue fetches every active source that was never fetched or is past its
// refresh interval. A failing source is recorded on the source and does not stop
// the others; only store failures and cancellation are returned.
func (in *Ingester) IngestDue(ctx context.Context) (Summary, error) {
	sources, err := in.store.ListDueFeedSources(ctx, in.now())
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list due feed sources: %w", err)
	}

	total := Summary{Sources: len(sources)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.concurrency)
	for i := range sources {
		source := sources[i]
		g.Go(func() error {
			res, err := in.IngestSource(gctx, &source)
			mu.Lock()
			total.add(res)
			mu.Unlock()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return total, err
	}

	in.log.Info("feed ingestion finished", "sources", total.Sources, "failed", total.Failed,
		"new_items", total.NewItems, "duplicates", total.Duplicates)
	return total, nil
}

// IngestSource fetches one source and stores its new entries.
func (in *Ingester) IngestSource(ctx context.Context, source *types.FeedSource) (Summary, error) {
	var res Summary
	log := in.log.With("feed", source.ID, "url", source.URL)

	feed, err := Fetch(ctx, in.client, source.URL)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) {
			return res, err
		}
		res.Failed = 1
		metrics.FeedFetches.WithLabelValues("error").Inc()
		log.Warn("feed fetch failed", "err", err)
		if recErr := in.store.RecordFetch(ctx, source.ID, in.now(), types.Truncate(err.Error(), 1000)); recErr != nil {
			return res, fmt.Errorf("failed to record fetch of feed %s: %w", source.ID, recErr)
		}
		return res, nil
	}
	metrics.FeedFetches.WithLabelValues("ok").Inc()

	for _, entry := range feed.Items {
		item, ok := toItem(source.ID, entry)
		if !ok {
			res.Skipped++
			continue
		}

		published, err := in.store.ArtifactExists(ctx, urlnorm.Normalize(item.URL))
		if err != nil {
			return res, fmt.Errorf("failed to check artifact for %s: %w", item.URL, err)
		}
		if published {
			item.Status = types.FeedItemDuplicate
		}

		created, err := in.store.InsertFeedItem(ctx, item)
		if err != nil {
			return res, fmt.Errorf("failed to store item %s of feed %s: %w", item.GUID, source.ID, err)
		}
		if !created {
			continue
		}
		res.NewItems++
		metrics.FeedItemsIngested.Inc()
		if published {
			res.Duplicates++
		}
	}

	if err := in.store.RecordFetch(ctx, source.ID, in.now(), ""); err != nil {
		return res, fmt.Errorf("failed to record fetch of feed %s: %w", source.ID, err)
	}
	log.Debug("feed fetched", "entries", len(feed.Items), "new_items", res.NewItems)
	return res, nil
}

// toItem converts a parsed entry. Entries without a usable link or title are skipped.
func toItem(feedID uuid.UUID, entry *gofeed.Item) (*types.FeedItem, bool) {
	link := strings.TrimSpace(entry.Link)
	title := StripHTML(entry.Title)
	if !urlnorm.Valid(link) || title == "" {
		return nil, false
	}

	guid := strings.TrimSpace(entry.GUID)
	if guid == "" {
		guid = link
	}

	content := entry.Content
	if strings.TrimSpace(content) == "" {
		content = entry.Description
	}

	item := &types.FeedItem{
		FeedID:  feedID,
		GUID:    types.Truncate(guid, MaxGUIDChars),
		URL:     link,
		Title:   types.Truncate(title, MaxTitleChars),
		Content: types.Truncate(StripHTML(content), MaxContentChars),
		Status:  types.FeedItemPending,
	}
	switch {
	case entry.PublishedParsed != nil:
		t := entry.PublishedParsed.UTC()
		item.PublishedAt = &t
	case entry.UpdatedParsed != nil:
		t := entry.UpdatedParsed.UTC()
		item.PublishedAt = &t
	}
	return item, true
}
