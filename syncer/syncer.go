package syncer

import (
	"context"
	"errors"
	"sync"
	"time"
	"tidings/db"
	"tidings/fetch"
	"tidings/models"
	"tidings/parse"
	"tidings/sanitize"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultConcurrency = 4
	DefaultRetention   = 365 * 24 * time.Hour
)

type Options struct {
	Concurrency int
	Retention   time.Duration
}

// Coordinator runs fetch→parse→sanitize→merge→prune pipelines for one or
// many feeds with bounded concurrency. It is the only component that touches
// multiple feeds at once; a feed never refreshes against itself in parallel.
type Coordinator struct {
	store   *db.Store
	fetcher *fetch.Fetcher
	opts    Options

	mu       sync.Mutex
	inFlight map[int64]struct{}
}

func New(store *db.Store, fetcher *fetch.Fetcher, opts Options) *Coordinator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	return &Coordinator{
		store:    store,
		fetcher:  fetcher,
		opts:     opts,
		inFlight: make(map[int64]struct{}),
	}
}

// RefreshAll refreshes every subscribed feed.
func (c *Coordinator) RefreshAll(ctx context.Context) (map[int64]models.RefreshOutcome, error) {
	ids, err := c.store.FeedIDs(ctx)
	if err != nil {
		return nil, err
	}
	return c.Refresh(ctx, ids), nil
}

// Refresh runs the pipeline for each requested feed and returns one outcome
// per feed. Failures are isolated per feed; a feed already being refreshed
// by another call is skipped rather than run twice concurrently.
func (c *Coordinator) Refresh(ctx context.Context, feedIDs []int64) map[int64]models.RefreshOutcome {
	outcomes := make(map[int64]models.RefreshOutcome, len(feedIDs))
	if len(feedIDs) == 0 {
		return outcomes
	}

	var queue []int64
	for _, feedID := range lo.Uniq(feedIDs) {
		if c.claim(feedID) {
			queue = append(queue, feedID)
		} else {
			outcomes[feedID] = models.Skipped(feedID)
		}
	}

	workers := c.opts.Concurrency
	if workers > len(queue) {
		workers = len(queue)
	}

	jobs := make(chan int64)
	results := make(chan models.RefreshOutcome)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for feedID := range jobs {
				results <- c.runPipeline(ctx, feedID)
				c.release(feedID)
			}
			log.Debugf("Worker %d: done", id)
		}(i)
	}

	go func() {
		for _, feedID := range queue {
			jobs <- feedID
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for outcome := range results {
		outcomes[outcome.FeedID] = outcome
	}

	return outcomes
}

func (c *Coordinator) claim(feedID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[feedID]; busy {
		return false
	}
	c.inFlight[feedID] = struct{}{}
	return true
}

func (c *Coordinator) release(feedID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, feedID)
}

// runPipeline refreshes a single feed: fetch, parse, sanitize, merge, prune.
// The store is untouched on any failure before the merge transaction.
func (c *Coordinator) runPipeline(ctx context.Context, feedID int64) models.RefreshOutcome {
	select {
	case <-ctx.Done():
		return models.Cancelled(feedID)
	default:
	}

	feed, err := c.store.GetFeed(ctx, feedID)
	if err != nil {
		return c.failed(ctx, feedID, err)
	}

	body, err := c.fetcher.Fetch(ctx, feed.URL)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return models.Cancelled(feedID)
		}
		return c.failed(ctx, feedID, err)
	}

	parsed, err := parse.Parse(body)
	if err != nil {
		return c.failed(ctx, feedID, err)
	}

	for i := range parsed.Entries {
		parsed.Entries[i].Title = sanitize.Clean(parsed.Entries[i].Title)
		parsed.Entries[i].Body = sanitize.Clean(parsed.Entries[i].Body)
	}
	parsed.Title = sanitize.Clean(parsed.Title)

	stats, err := c.store.Merge(ctx, feedID, parsed)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return models.Cancelled(feedID)
		}
		return c.failed(ctx, feedID, err)
	}

	// Retention runs opportunistically after a successful merge. A prune
	// failure is recorded but does not undo the merge that just happened.
	if _, err := c.store.PruneExpired(ctx, feedID, time.Now(), c.opts.Retention); err != nil {
		log.WithFields(log.Fields{
			"feedId": feedID,
			"err":    err,
		}).Error("Pruning expired entries failed")
		_ = c.store.SetLastError(ctx, feedID, err.Error())
	}

	if stats.Changed() == 0 {
		return models.Unchanged(feedID)
	}
	return models.Updated(feedID, stats.Changed())
}

// failed classifies err, records it on the feed and wraps it in an outcome.
func (c *Coordinator) failed(ctx context.Context, feedID int64, err error) models.RefreshOutcome {
	kind, message := classify(err)

	log.WithFields(log.Fields{
		"feedId": feedID,
		"kind":   kind,
	}).Warn(message)

	// Best effort: the record is advisory and the refresh already failed.
	if recordErr := c.store.SetLastError(ctx, feedID, message); recordErr != nil {
		log.WithField("feedId", feedID).Errorf("Recording last error failed: %v", recordErr)
	}

	return models.Failed(feedID, kind, message)
}

func classify(err error) (models.ErrorKind, string) {
	var fetchErr *fetch.Error
	if errors.As(err, &fetchErr) {
		return fetchErr.Kind, fetchErr.Error()
	}
	var parseErr *parse.Error
	if errors.As(err, &parseErr) {
		return parseErr.Kind, parseErr.Error()
	}
	var dbErr *db.Error
	if errors.As(err, &dbErr) {
		return dbErr.Kind, dbErr.Error()
	}
	return models.ErrorKindStoreIO, err.Error()
}
