package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"tidings/fetch"
	"tidings/models"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// SetRead marks a single entry read or unread.
func (store *Store) SetRead(ctx context.Context, entryID int64, read bool) error {
	value := 0
	if read {
		value = 1
	}
	res, err := store.db.ExecContext(ctx, "UPDATE entries SET read = ? WHERE id = ?", value, entryID)
	if err != nil {
		return storeErr(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storeErr(fmt.Errorf("no entry with id %d", entryID))
	}
	return nil
}

// ToggleRead flips the read flag of an entry.
func (store *Store) ToggleRead(ctx context.Context, entryID int64) error {
	res, err := store.db.ExecContext(ctx, "UPDATE entries SET read = 1 - read WHERE id = ?", entryID)
	if err != nil {
		return storeErr(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storeErr(fmt.Errorf("no entry with id %d", entryID))
	}
	return nil
}

// MarkFeedRead marks every entry of a feed read in one statement.
func (store *Store) MarkFeedRead(ctx context.Context, feedID int64) error {
	_, err := store.db.ExecContext(ctx, "UPDATE entries SET read = 1 WHERE feed_id = ? AND read = 0", feedID)
	return storeErr(err)
}

// ListFeeds returns all feeds with their unread counts, ordered by title.
func (store *Store) ListFeeds(ctx context.Context) ([]models.FeedWithUnread, error) {
	rows, err := store.db.QueryContext(ctx, `
		SELECT f.id, f.url, f.title, f.created_at, f.last_refreshed_at, f.last_error,
		       COUNT(e.id) FILTER (WHERE e.read = 0) AS unread
		FROM feeds f
		LEFT JOIN entries e ON e.feed_id = f.id
		GROUP BY f.id
		ORDER BY lower(f.title) ASC`)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var feeds []models.FeedWithUnread
	for rows.Next() {
		var item models.FeedWithUnread
		var createdAt int64
		var refreshedAt sql.NullInt64
		var lastError sql.NullString

		if err := rows.Scan(&item.Feed.ID, &item.Feed.URL, &item.Feed.Title,
			&createdAt, &refreshedAt, &lastError, &item.Unread); err != nil {
			return nil, storeErr(err)
		}
		item.Feed.CreatedAt = time.Unix(createdAt, 0).UTC()
		if refreshedAt.Valid {
			t := time.Unix(refreshedAt.Int64, 0).UTC()
			item.Feed.LastRefreshedAt = &t
		}
		if lastError.Valid {
			item.Feed.LastError = lastError.String
		}
		feeds = append(feeds, item)
	}
	return feeds, storeErr(rows.Err())
}

// ListEntries returns entries for one feed, or for all feeds when feedID is
// zero, newest published first with undated entries last. Each entry carries
// its feed's title for combined views.
func (store *Store) ListEntries(ctx context.Context, feedID int64, unreadOnly bool) ([]models.Entry, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("e.id", "e.feed_id", "e.entry_key", "e.title", "e.body", "e.link",
		"e.published_at", "e.read", "e.first_seen_at", "f.title").
		From("entries e").
		Join("feeds f", "f.id = e.feed_id")

	if feedID != 0 {
		sb.Where(sb.Equal("e.feed_id", feedID))
	}
	if unreadOnly {
		sb.Where(sb.Equal("e.read", 0))
	}

	// Published order for reading; undated entries sort last, first_seen is
	// the stable tiebreak for the weird dates feeds ship.
	sb.OrderBy("e.published_at IS NULL", "e.published_at DESC", "e.first_seen_at DESC", "e.id DESC")

	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	rows, err := store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var entries []models.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		entries = append(entries, *entry)
	}
	return entries, storeErr(rows.Err())
}

// GetEntry loads a single entry with its body.
func (store *Store) GetEntry(ctx context.Context, entryID int64) (*models.Entry, error) {
	row := store.db.QueryRowContext(ctx, `
		SELECT e.id, e.feed_id, e.entry_key, e.title, e.body, e.link,
		       e.published_at, e.read, e.first_seen_at, f.title
		FROM entries e
		JOIN feeds f ON f.id = e.feed_id
		WHERE e.id = ?`, entryID)

	entry, err := scanEntry(row)
	if err != nil {
		return nil, storeErr(err)
	}
	return entry, nil
}

// ExportAll returns every subscription as a (title, url) pair.
func (store *Store) ExportAll(ctx context.Context) ([]models.Subscription, error) {
	rows, err := store.db.QueryContext(ctx, "SELECT title, url FROM feeds ORDER BY lower(title) ASC")
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		var sub models.Subscription
		if err := rows.Scan(&sub.Title, &sub.URL); err != nil {
			return nil, storeErr(err)
		}
		subs = append(subs, sub)
	}
	return subs, storeErr(rows.Err())
}

// Import subscribes to each (title, url) pair. Invalid URLs and already
// subscribed feeds are skipped and counted, never fatal for the batch.
func (store *Store) Import(ctx context.Context, subs []models.Subscription) (models.ImportStats, error) {
	var stats models.ImportStats
	for _, sub := range subs {
		normalized, err := fetch.NormalizeURL(sub.URL)
		if err != nil {
			log.WithFields(log.Fields{
				"url": sub.URL,
				"err": err,
			}).Warn("Skipping invalid subscription url")
			stats.Skipped++
			continue
		}

		if _, err := store.Subscribe(ctx, normalized, sub.Title); err != nil {
			var dbErr *Error
			if errors.As(err, &dbErr) && dbErr.Kind == models.ErrorKindDuplicateFeed {
				stats.Skipped++
				continue
			}
			return stats, err
		}
		stats.Added++
	}
	return stats, nil
}

// FeedActivity returns entry counts per day over the last days, oldest
// first, with empty days filled in as zero.
func (store *Store) FeedActivity(ctx context.Context, feedID int64, days int) ([]models.ActivityBucket, error) {
	start := time.Now().UTC().AddDate(0, 0, -(days - 1)).Truncate(24 * time.Hour)

	rows, err := store.db.QueryContext(ctx, `
		SELECT STRFTIME('%Y-%m-%d', COALESCE(published_at, first_seen_at), 'unixepoch') AS day, COUNT(*)
		FROM entries
		WHERE feed_id = ? AND COALESCE(published_at, first_seen_at) >= ?
		GROUP BY day
		ORDER BY day ASC`, feedID, start.Unix())
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var day string
		var count int64
		if err := rows.Scan(&day, &count); err != nil {
			return nil, storeErr(err)
		}
		counts[day] = count
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}

	buckets := make([]models.ActivityBucket, 0, days)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i)
		buckets = append(buckets, models.ActivityBucket{
			Day:   day,
			Count: counts[day.Format("2006-01-02")],
		})
	}
	return buckets, nil
}

func scanEntry(row rowScanner) (*models.Entry, error) {
	var entry models.Entry
	var published sql.NullInt64
	var read int
	var firstSeen int64

	if err := row.Scan(&entry.ID, &entry.FeedID, &entry.EntryKey, &entry.Title, &entry.Body,
		&entry.Link, &published, &read, &firstSeen, &entry.FeedTitle); err != nil {
		return nil, err
	}

	if published.Valid {
		t := time.Unix(published.Int64, 0).UTC()
		entry.PublishedAt = &t
	}
	entry.Read = read != 0
	entry.FirstSeenAt = time.Unix(firstSeen, 0).UTC()
	return &entry, nil
}
