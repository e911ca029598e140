package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
	"tidings/models"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// Error is a classified store failure.
type Error struct {
	Kind models.ErrorKind
	err  error
}

func (e *Error) Error() string {
	if e.Kind == models.ErrorKindDuplicateFeed {
		return "feed is already subscribed"
	}
	return fmt.Sprintf("store error: %v", e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

func storeErr(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: models.ErrorKindStoreIO, err: err}
}

// Store is the persistent system of record for feeds, entries, read state
// and retention. One Store is opened at startup and passed by handle to
// everything that needs it; all mutation goes through its transactional
// operations.
type Store struct {
	db *sql.DB
}

// Open migrates the database at path and returns a ready store.
func Open(path string) (*Store, error) {
	if err := Migrate(path); err != nil {
		return nil, storeErr(fmt.Errorf("migrate: %w", err))
	}
	conn, err := connection(path)
	if err != nil {
		return nil, storeErr(err)
	}
	return &Store{db: conn}, nil
}

func (store *Store) Close() error {
	return store.db.Close()
}

// inTransaction runs f in a transaction, committing on a nil error and
// rolling back otherwise.
func (store *Store) inTransaction(ctx context.Context, f func(tx *sql.Tx) error) error {
	tx, err := store.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Subscribe creates a feed for the given normalized URL. The display title
// defaults to the URL itself until a merge or rename supplies a better one.
func (store *Store) Subscribe(ctx context.Context, url string, title string) (int64, error) {
	if title == "" {
		title = url
	}

	var feedID int64
	err := store.inTransaction(ctx, func(tx *sql.Tx) error {
		var existing int64
		err := tx.QueryRowContext(ctx, "SELECT id FROM feeds WHERE url = ?", url).Scan(&existing)
		if err == nil {
			return &Error{Kind: models.ErrorKindDuplicateFeed}
		}
		if err != sql.ErrNoRows {
			return err
		}

		insert := sqlbuilder.NewInsertBuilder()
		sql, args := insert.InsertInto("feeds").
			Cols("url", "title", "created_at").
			Values(url, title, time.Now().Unix()).
			Build()

		res, err := tx.ExecContext(ctx, sql, args...)
		if err != nil {
			return err
		}
		feedID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		if dbErr, ok := err.(*Error); ok {
			return 0, dbErr
		}
		return 0, storeErr(err)
	}

	log.WithFields(log.Fields{
		"feedId": feedID,
		"url":    url,
	}).Info("Subscribed to feed")

	return feedID, nil
}

// Rename sets the user-facing title of a feed.
func (store *Store) Rename(ctx context.Context, feedID int64, title string) error {
	update := sqlbuilder.NewUpdateBuilder()
	sql, args := update.Update("feeds").
		Set(update.Assign("title", title)).
		Where(update.Equal("id", feedID)).
		Build()

	res, err := store.db.ExecContext(ctx, sql, args...)
	if err != nil {
		return storeErr(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storeErr(fmt.Errorf("no feed with id %d", feedID))
	}
	return nil
}

// Delete removes a feed and, through the foreign key cascade, all of its
// entries.
func (store *Store) Delete(ctx context.Context, feedID int64) error {
	err := store.inTransaction(ctx, func(tx *sql.Tx) error {
		// The cascade handles entries, but feeds created before foreign keys
		// were enabled could leave orphans, so delete explicitly as well.
		if _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE feed_id = ?", feedID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM feeds WHERE id = ?", feedID)
		return err
	})
	if err != nil {
		return storeErr(err)
	}

	log.WithField("feedId", feedID).Info("Deleted feed")
	return nil
}

// SetLastError records a classified refresh failure on the feed so it
// survives restarts. An empty message clears the record.
func (store *Store) SetLastError(ctx context.Context, feedID int64, message string) error {
	var value interface{}
	if message != "" {
		value = message
	}
	_, err := store.db.ExecContext(ctx, "UPDATE feeds SET last_error = ? WHERE id = ?", value, feedID)
	return storeErr(err)
}

// GetFeed loads a single feed by id.
func (store *Store) GetFeed(ctx context.Context, feedID int64) (*models.Feed, error) {
	row := store.db.QueryRowContext(ctx,
		"SELECT id, url, title, created_at, last_refreshed_at, last_error FROM feeds WHERE id = ?", feedID)

	feed, err := scanFeed(row)
	if err != nil {
		return nil, storeErr(err)
	}
	return feed, nil
}

// FeedIDs returns the ids of every subscribed feed, ordered by title.
func (store *Store) FeedIDs(ctx context.Context) ([]int64, error) {
	rows, err := store.db.QueryContext(ctx, "SELECT id FROM feeds ORDER BY lower(title) ASC")
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr(err)
		}
		ids = append(ids, id)
	}
	return ids, storeErr(rows.Err())
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFeed(row rowScanner) (*models.Feed, error) {
	var feed models.Feed
	var createdAt int64
	var refreshedAt sql.NullInt64
	var lastError sql.NullString

	if err := row.Scan(&feed.ID, &feed.URL, &feed.Title, &createdAt, &refreshedAt, &lastError); err != nil {
		return nil, err
	}

	feed.CreatedAt = time.Unix(createdAt, 0).UTC()
	if refreshedAt.Valid {
		t := time.Unix(refreshedAt.Int64, 0).UTC()
		feed.LastRefreshedAt = &t
	}
	if lastError.Valid {
		feed.LastError = lastError.String
	}
	return &feed, nil
}
