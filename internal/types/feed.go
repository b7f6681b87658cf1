package types

import (
	"time"

	"github.com/google/uuid"
)

// FeedRefreshInterval is how long a fetched feed stays fresh.
const FeedRefreshInterval = time.Hour

// FeedSource is an RSS or Atom feed that agents can be assigned to.
type FeedSource struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	URL           string     `json:"url"`
	Active        bool       `json:"active"`
	LastFetchedAt *time.Time `json:"last_fetched_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	FetchCount    int        `json:"fetch_count"`
	StoryCount    int        `json:"story_count"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Due reports whether the feed should be fetched again at now.
func (f *FeedSource) Due(now time.Time) bool {
	if !f.Active {
		return false
	}
	return f.LastFetchedAt == nil || now.Sub(*f.LastFetchedAt) >= FeedRefreshInterval
}

// FeedItemStatus is the processing state of an ingested feed entry.
type FeedItemStatus string

// Feed item states
const (
	FeedItemPending    FeedItemStatus = "pending"
	FeedItemRelevant   FeedItemStatus = "relevant"
	FeedItemIrrelevant FeedItemStatus = "irrelevant"
	FeedItemDuplicate  FeedItemStatus = "duplicate"
	FeedItemSubmitted  FeedItemStatus = "submitted"
	FeedItemError      FeedItemStatus = "error"
)

// Unprocessed reports whether agents may still pick the item up.
func (s FeedItemStatus) Unprocessed() bool {
	return s == FeedItemPending || s == FeedItemRelevant
}

// FeedItem is a pre-ingested entry of a feed source.
type FeedItem struct {
	ID          uuid.UUID      `json:"id"`
	FeedID      uuid.UUID      `json:"feed_id"`
	GUID        string         `json:"guid"`
	URL         string         `json:"url"`
	Title       string         `json:"title"`
	Content     string         `json:"content,omitempty"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	Status      FeedItemStatus `json:"status"`
	ArtifactID  *uuid.UUID     `json:"artifact_id,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// OlderThan reports whether the item was published more than maxAge before now.
// Items without a publish date are never considered stale.
func (i *FeedItem) OlderThan(maxAge time.Duration, now time.Time) bool {
	if i.PublishedAt == nil || maxAge <= 0 {
		return false
	}
	return now.Sub(*i.PublishedAt) > maxAge
}
