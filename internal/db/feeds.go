package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/curator/internal/store"
	"github.com/jonathan/curator/internal/types"
)

const feedSourceColumns = `id, name, url, active, last_fetched_at, last_error, fetch_count, story_count, created_at`

const feedItemColumns = `id, feed_id, guid, url, title, content, published_at, status, artifact_id, created_at`

func scanFeedSource(row rowScanner) (*types.FeedSource, error) {
	var f types.FeedSource
	err := row.Scan(&f.ID, &f.Name, &f.URL, &f.Active, &f.LastFetchedAt, &f.LastError, &f.FetchCount, &f.StoryCount, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (db *DB) queryFeedSources(ctx context.Context, query string, args ...any) ([]types.FeedSource, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []types.FeedSource
	for rows.Next() {
		f, err := scanFeedSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed source: %w", err)
		}
		sources = append(sources, *f)
	}
	return sources, rows.Err()
}

// ListAssignedSources retrieves the active feed sources assigned to the agent.
func (db *DB) ListAssignedSources(ctx context.Context, agent *types.Agent) ([]types.FeedSource, error) {
	if len(agent.Search.FeedSourceIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(agent.Search.FeedSourceIDs))
	for i, id := range agent.Search.FeedSourceIDs {
		ids[i] = id.String()
	}
	sources, err := db.queryFeedSources(ctx,
		`SELECT `+feedSourceColumns+` FROM feed_sources
		 WHERE id = ANY($1::uuid[]) AND active
		 ORDER BY name`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list feed sources of agent %s: %w", agent.ID, err)
	}
	return sources, nil
}

// ListUnprocessedItems retrieves the pending and relevant items of a feed, oldest first.
func (db *DB) ListUnprocessedItems(ctx context.Context, feedID uuid.UUID) ([]types.FeedItem, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+feedItemColumns+` FROM feed_items
		 WHERE feed_id = $1 AND status IN ('pending', 'relevant')
		 ORDER BY created_at ASC`,
		feedID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list feed items: %w", err)
	}
	defer rows.Close()

	var items []types.FeedItem
	for rows.Next() {
		var it types.FeedItem
		if err := rows.Scan(&it.ID, &it.FeedID, &it.GUID, &it.URL, &it.Title, &it.Content, &it.PublishedAt,
			&it.Status, &it.ArtifactID, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feed item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// FeedStoryCountForItem returns the story count of the feed the item came from.
func (db *DB) FeedStoryCountForItem(ctx context.Context, itemID uuid.UUID) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx,
		`SELECT f.story_count FROM feed_items i JOIN feed_sources f ON f.id = i.feed_id WHERE i.id = $1`,
		itemID,
	).Scan(&n)
	if err != nil {
		if isNoRows(err) {
			return 0, fmt.Errorf("feed item %s: %w", itemID, store.ErrNotFound)
		}
		return 0, fmt.Errorf("failed to get feed story count: %w", err)
	}
	return n, nil
}

// MarkFeedItemSubmitted links the item to its artifact and credits the feed with a story.
func (db *DB) MarkFeedItemSubmitted(ctx context.Context, itemID, artifactID uuid.UUID) error {
	return pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		var feedID uuid.UUID
		err := tx.QueryRow(ctx,
			`UPDATE feed_items SET status = 'submitted', artifact_id = $2 WHERE id = $1 RETURNING feed_id`,
			itemID, artifactID,
		).Scan(&feedID)
		if err != nil {
			if isNoRows(err) {
				return fmt.Errorf("feed item %s: %w", itemID, store.ErrNotFound)
			}
			return fmt.Errorf("failed to mark feed item submitted: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE feed_sources SET story_count = story_count + 1 WHERE id = $1`, feedID); err != nil {
			return fmt.Errorf("failed to increment story count: %w", err)
		}
		return nil
	})
}

// ListDueFeedSources retrieves active feeds never fetched or fetched at least
// types.FeedRefreshInterval before now.
func (db *DB) ListDueFeedSources(ctx context.Context, now time.Time) ([]types.FeedSource, error) {
	sources, err := db.queryFeedSources(ctx,
		`SELECT `+feedSourceColumns+` FROM feed_sources
		 WHERE active AND (last_fetched_at IS NULL OR last_fetched_at <= $1)
		 ORDER BY name`,
		now.Add(-types.FeedRefreshInterval),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list due feed sources: %w", err)
	}
	return sources, nil
}

// UpsertFeedSource inserts or updates a feed's name, URL and active flag.
func (db *DB) UpsertFeedSource(ctx context.Context, f *types.FeedSource) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO feed_sources (id, name, url, active)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, url = EXCLUDED.url, active = EXCLUDED.active
		 RETURNING last_fetched_at, last_error, fetch_count, story_count, created_at`,
		f.ID, f.Name, f.URL, f.Active,
	).Scan(&f.LastFetchedAt, &f.LastError, &f.FetchCount, &f.StoryCount, &f.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert feed source %s: %w", f.Name, err)
	}
	return nil
}

// InsertFeedItem stores a new item, reporting false when the feed already has its GUID.
func (db *DB) InsertFeedItem(ctx context.Context, item *types.FeedItem) (bool, error) {
	id := item.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	status := item.Status
	if status == "" {
		status = types.FeedItemPending
	}

	var createdAt time.Time
	err := db.pool.QueryRow(ctx,
		`INSERT INTO feed_items (id, feed_id, guid, url, title, content, published_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (feed_id, guid) DO NOTHING
		 RETURNING created_at`,
		id, item.FeedID, item.GUID, item.URL, item.Title, item.Content, item.PublishedAt, status,
	).Scan(&createdAt)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert feed item: %w", err)
	}
	item.ID, item.Status, item.CreatedAt = id, status, createdAt
	return true, nil
}

// RecordFetch stores the outcome of a fetch attempt. An empty fetchErr clears the
// last error.
func (db *DB) RecordFetch(ctx context.Context, feedID uuid.UUID, at time.Time, fetchErr string) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE feed_sources SET last_fetched_at = $2, last_error = $3, fetch_count = fetch_count + 1 WHERE id = $1`,
		feedID, at, fetchErr,
	)
	if err != nil {
		return fmt.Errorf("failed to record fetch: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("feed %s: %w", feedID, store.ErrNotFound)
	}
	return nil
}
