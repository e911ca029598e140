package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"time"
	"tidings/models"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// EntryKey derives the stable identity of a parsed entry within its feed.
// The feed's own identifier wins when present. Without one the key is a
// hash of link and title, and an entry carrying neither hashes its body and
// published date instead, so two id-less entries stay distinct whenever any
// field differs.
func EntryKey(entry models.ParsedEntry) string {
	if entry.ID != "" {
		return entry.ID
	}

	h := sha256.New()
	if entry.Link != "" || entry.Title != "" {
		h.Write([]byte(entry.Link))
		h.Write([]byte{0})
		h.Write([]byte(entry.Title))
	} else {
		h.Write([]byte(entry.Body))
		h.Write([]byte{0})
		if entry.Published != nil {
			h.Write([]byte(entry.Published.UTC().Format(time.RFC3339)))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

type storedEntry struct {
	title     string
	body      string
	link      string
	published sql.NullInt64
}

// Merge reconciles a parsed feed into the store in a single transaction.
// Entries whose key already exists are updated in place with their read flag
// untouched; new keys are inserted unread with first_seen set to now. A feed
// title is adopted as display title only while the user has not renamed the
// feed away from its URL. The feed's last_refreshed_at is bumped and
// last_error cleared as part of the same transaction.
func (store *Store) Merge(ctx context.Context, feedID int64, parsed *models.ParsedFeed) (models.MergeStats, error) {
	var stats models.MergeStats
	now := time.Now()

	err := store.inTransaction(ctx, func(tx *sql.Tx) error {
		existing, err := loadEntries(ctx, tx, feedID)
		if err != nil {
			return err
		}

		insertStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO entries (feed_id, entry_key, title, body, link, published_at, read, first_seen_at)
			 VALUES (?, ?, ?, ?, ?, ?, 0, ?)`)
		if err != nil {
			return err
		}
		defer insertStmt.Close()

		updateStmt, err := tx.PrepareContext(ctx,
			`UPDATE entries SET title = ?, body = ?, link = ?, published_at = ?
			 WHERE feed_id = ? AND entry_key = ?`)
		if err != nil {
			return err
		}
		defer updateStmt.Close()

		// Entries are applied in parser order; a duplicate key later in the
		// same document updates the row written earlier in this transaction.
		for _, entry := range parsed.Entries {
			key := EntryKey(entry)
			incoming := storedEntry{
				title:     entry.Title,
				body:      entry.Body,
				link:      entry.Link,
				published: publishedValue(entry.Published),
			}

			current, ok := existing[key]
			switch {
			case !ok:
				if _, err := insertStmt.ExecContext(ctx, feedID, key,
					incoming.title, incoming.body, incoming.link, nullable(incoming.published), now.Unix()); err != nil {
					return err
				}
				stats.Inserted++
			case current != incoming:
				if _, err := updateStmt.ExecContext(ctx,
					incoming.title, incoming.body, incoming.link, nullable(incoming.published), feedID, key); err != nil {
					return err
				}
				stats.Updated++
			default:
				stats.Unchanged++
			}
			existing[key] = incoming
		}

		if err := adoptFeedTitle(ctx, tx, feedID, parsed.Title); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE feeds SET last_refreshed_at = ?, last_error = NULL WHERE id = ?", now.Unix(), feedID)
		return err
	})
	if err != nil {
		return models.MergeStats{}, storeErr(err)
	}

	log.WithFields(log.Fields{
		"feedId":    feedID,
		"inserted":  stats.Inserted,
		"updated":   stats.Updated,
		"unchanged": stats.Unchanged,
	}).Info("Merged feed")

	return stats, nil
}

// PruneExpired deletes entries first seen before now minus retention. It runs
// in its own transaction, after a successful merge, never during one.
func (store *Store) PruneExpired(ctx context.Context, feedID int64, now time.Time, retention time.Duration) (int64, error) {
	cutoff := now.Add(-retention).Unix()

	deleteEntries := sqlbuilder.NewDeleteBuilder()
	query, args := deleteEntries.DeleteFrom("entries").
		Where(
			deleteEntries.Equal("feed_id", feedID),
			deleteEntries.LessThan("first_seen_at", cutoff),
		).
		Build()

	res, err := store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, storeErr(err)
	}
	pruned, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr(err)
	}

	if pruned > 0 {
		log.WithFields(log.Fields{
			"feedId": feedID,
			"pruned": pruned,
		}).Info("Pruned expired entries")
	}

	return pruned, nil
}

func loadEntries(ctx context.Context, tx *sql.Tx, feedID int64) (map[string]storedEntry, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT entry_key, title, body, link, published_at FROM entries WHERE feed_id = ?", feedID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := make(map[string]storedEntry)
	for rows.Next() {
		var key string
		var entry storedEntry
		if err := rows.Scan(&key, &entry.title, &entry.body, &entry.link, &entry.published); err != nil {
			return nil, err
		}
		existing[key] = entry
	}
	return existing, rows.Err()
}

// adoptFeedTitle takes the feed-supplied title as display title unless the
// user has renamed the feed (detected by the title no longer matching the
// subscribed URL).
func adoptFeedTitle(ctx context.Context, tx *sql.Tx, feedID int64, title string) error {
	if title == "" {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		"UPDATE feeds SET title = ? WHERE id = ? AND title = url", title, feedID)
	return err
}

func publishedValue(published *time.Time) sql.NullInt64 {
	if published == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: published.Unix(), Valid: true}
}

func nullable(v sql.NullInt64) interface{} {
	if !v.Valid {
		return nil
	}
	return v.Int64
}
