package db_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"
	"tidings/db"
	"tidings/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *db.Store {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "tidings.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func threeEntryFeed() *models.ParsedFeed {
	published := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	return &models.ParsedFeed{
		Title: "Example Feed",
		Entries: []models.ParsedEntry{
			{ID: "guid-1", Title: "One", Link: "https://example.com/1", Body: "body one", Published: timePtr(published)},
			{ID: "guid-2", Title: "Two", Link: "https://example.com/2", Body: "body two", Published: timePtr(published.Add(-time.Hour))},
			{ID: "guid-3", Title: "Three", Link: "https://example.com/3", Body: "body three", Published: timePtr(published.Add(-2 * time.Hour))},
		},
	}
}

func TestSubscribeAndDuplicate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	feedID, err := store.Subscribe(ctx, "https://example.com/feed", "")
	require.NoError(t, err)
	assert.Greater(t, feedID, int64(0))

	_, err = store.Subscribe(ctx, "https://example.com/feed", "")
	var dbErr *db.Error
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, models.ErrorKindDuplicateFeed, dbErr.Kind)

	feed, err := store.GetFeed(ctx, feedID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/feed", feed.URL)
	assert.Equal(t, "https://example.com/feed", feed.Title, "title falls back to url")
	assert.Nil(t, feed.LastRefreshedAt)
}

func TestMergeInsertsAndAdoptsTitle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	feedID, err := store.Subscribe(ctx, "https://example.com/feed", "")
	require.NoError(t, err)

	stats, err := store.Merge(ctx, feedID, threeEntryFeed())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Inserted)
	assert.Equal(t, 0, stats.Updated)
	assert.Equal(t, 3, stats.Changed())

	feed, err := store.GetFeed(ctx, feedID)
	require.NoError(t, err)
	assert.Equal(t, "Example Feed", feed.Title, "feed title adopted on first merge")
	assert.NotNil(t, feed.LastRefreshedAt)
}

func TestMergeIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	feedID, err := store.Subscribe(ctx, "https://example.com/feed", "")
	require.NoError(t, err)

	_, err = store.Merge(ctx, feedID, threeEntryFeed())
	require.NoError(t, err)

	stats, err := store.Merge(ctx, feedID, threeEntryFeed())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Inserted)
	assert.Equal(t, 0, stats.Updated)
	assert.Equal(t, 3, stats.Unchanged)

	entries, err := store.ListEntries(ctx, feedID, false)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "no duplicates from re-merging the same document")
}

func TestMergeUpdatesChangedEntryInPlace(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	feedID, err := store.Subscribe(ctx, "https://example.com/feed", "")
	require.NoError(t, err)

	_, err = store.Merge(ctx, feedID, threeEntryFeed())
	require.NoError(t, err)

	changed := threeEntryFeed()
	changed.Entries[0].Title = "One, revised"

	stats, err := store.Merge(ctx, feedID, changed)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Inserted)
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 2, stats.Unchanged)

	entries, err := store.ListEntries(ctx, feedID, false)
	require.NoError(t, err)
	require.Len(t, entries, 3, "entry count unchanged by an in-place update")
	assert.Equal(t, "One, revised", entries[0].Title)
}

func TestMergePreservesReadState(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	feedID, err := store.Subscribe(ctx, "https://example.com/feed", "")
	require.NoError(t, err)
	_, err = store.Merge(ctx, feedID, threeEntryFeed())
	require.NoError(t, err)

	entries, err := store.ListEntries(ctx, feedID, false)
	require.NoError(t, err)
	require.NoError(t, store.SetRead(ctx, entries[0].ID, true))

	// Re-merge with the read entry's body changed upstream.
	update := threeEntryFeed()
	update.Entries[0].Body = "body one, expanded"
	_, err = store.Merge(ctx, feedID, update)
	require.NoError(t, err)

	after, err := store.GetEntry(ctx, entries[0].ID)
	require.NoError(t, err)
	assert.True(t, after.Read, "read flag survives a body update")
	assert.Equal(t, "body one, expanded", after.Body)
}

func TestDedupAcrossInsertionOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	feedID, err := store.Subscribe(ctx, "https://example.com/feed", "")
	require.NoError(t, err)

	first := &models.ParsedFeed{Entries: []models.ParsedEntry{
		{ID: "shared", Title: "A", Link: "https://example.com/a"},
	}}
	second := &models.ParsedFeed{Entries: []models.ParsedEntry{
		{ID: "other", Title: "B", Link: "https://example.com/b"},
		{ID: "shared", Title: "A", Link: "https://example.com/a"},
	}}

	_, err = store.Merge(ctx, feedID, first)
	require.NoError(t, err)
	_, err = store.Merge(ctx, feedID, second)
	require.NoError(t, err)

	entries, err := store.ListEntries(ctx, feedID, false)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "same identity key merges into one entry")
}

func TestEntryKeyFallbacks(t *testing.T) {
	withID := models.ParsedEntry{ID: "guid", Title: "t", Link: "l"}
	assert.Equal(t, "guid", db.EntryKey(withID))

	linkTitle := models.ParsedEntry{Title: "t", Link: "https://example.com/x"}
	assert.Equal(t, db.EntryKey(linkTitle), db.EntryKey(linkTitle), "fallback key is deterministic")
	assert.NotEqual(t, db.EntryKey(linkTitle),
		db.EntryKey(models.ParsedEntry{Title: "other", Link: "https://example.com/x"}))

	bare := models.ParsedEntry{Body: "just a body"}
	assert.NotEqual(t, db.EntryKey(bare), db.EntryKey(models.ParsedEntry{Body: "different body"}),
		"entries with no id, link or title stay distinct when any field differs")
}

func TestPruneExpired(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	feedID, err := store.Subscribe(ctx, "https://example.com/feed", "")
	require.NoError(t, err)
	_, err = store.Merge(ctx, feedID, threeEntryFeed())
	require.NoError(t, err)

	// Nothing is old yet.
	pruned, err := store.PruneExpired(ctx, feedID, time.Now(), 365*24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, pruned)

	// Move "now" two years forward; everything ages out.
	pruned, err = store.PruneExpired(ctx, feedID, time.Now().AddDate(2, 0, 0), 365*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 3, pruned)

	entries, err := store.ListEntries(ctx, feedID, false)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDeleteCascadesEntries(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	feedID, err := store.Subscribe(ctx, "https://example.com/feed", "")
	require.NoError(t, err)
	_, err = store.Merge(ctx, feedID, threeEntryFeed())
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, feedID))

	entries, err := store.ListEntries(ctx, 0, false)
	require.NoError(t, err)
	assert.Empty(t, entries, "deleting a feed removes its entries")

	feeds, err := store.ListFeeds(ctx)
	require.NoError(t, err)
	assert.Empty(t, feeds)
}

func TestRenameSticksThroughMerge(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	feedID, err := store.Subscribe(ctx, "https://example.com/feed", "")
	require.NoError(t, err)
	require.NoError(t, store.Rename(ctx, feedID, "My Custom Name"))

	_, err = store.Merge(ctx, feedID, threeEntryFeed())
	require.NoError(t, err)

	feed, err := store.GetFeed(ctx, feedID)
	require.NoError(t, err)
	assert.Equal(t, "My Custom Name", feed.Title, "merge never clobbers a user rename")
}

func TestListEntriesOrderingAndUnreadFilter(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	feedID, err := store.Subscribe(ctx, "https://example.com/feed", "")
	require.NoError(t, err)

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	parsed := &models.ParsedFeed{Entries: []models.ParsedEntry{
		{ID: "undated", Title: "No Date"},
		{ID: "old", Title: "Old", Published: timePtr(old)},
		{ID: "recent", Title: "Recent", Published: timePtr(recent)},
	}}
	_, err = store.Merge(ctx, feedID, parsed)
	require.NoError(t, err)

	entries, err := store.ListEntries(ctx, feedID, false)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "Recent", entries[0].Title)
	assert.Equal(t, "Old", entries[1].Title)
	assert.Equal(t, "No Date", entries[2].Title, "entries without a published date sort last")

	require.NoError(t, store.SetRead(ctx, entries[0].ID, true))
	unread, err := store.ListEntries(ctx, feedID, true)
	require.NoError(t, err)
	assert.Len(t, unread, 2)
}

func TestListEntriesAllFeedsCarriesFeedTitle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	aID, err := store.Subscribe(ctx, "https://a.example.com/feed", "Feed A")
	require.NoError(t, err)
	bID, err := store.Subscribe(ctx, "https://b.example.com/feed", "Feed B")
	require.NoError(t, err)

	_, err = store.Merge(ctx, aID, &models.ParsedFeed{Entries: []models.ParsedEntry{{ID: "a1", Title: "from a"}}})
	require.NoError(t, err)
	_, err = store.Merge(ctx, bID, &models.ParsedFeed{Entries: []models.ParsedEntry{{ID: "b1", Title: "from b"}}})
	require.NoError(t, err)

	entries, err := store.ListEntries(ctx, 0, true)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	titles := []string{entries[0].FeedTitle, entries[1].FeedTitle}
	assert.ElementsMatch(t, []string{"Feed A", "Feed B"}, titles)
}

func TestToggleReadAndMarkFeedRead(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	feedID, err := store.Subscribe(ctx, "https://example.com/feed", "")
	require.NoError(t, err)
	_, err = store.Merge(ctx, feedID, threeEntryFeed())
	require.NoError(t, err)

	entries, err := store.ListEntries(ctx, feedID, false)
	require.NoError(t, err)

	require.NoError(t, store.ToggleRead(ctx, entries[0].ID))
	entry, err := store.GetEntry(ctx, entries[0].ID)
	require.NoError(t, err)
	assert.True(t, entry.Read)

	require.NoError(t, store.ToggleRead(ctx, entries[0].ID))
	entry, err = store.GetEntry(ctx, entries[0].ID)
	require.NoError(t, err)
	assert.False(t, entry.Read)

	require.NoError(t, store.MarkFeedRead(ctx, feedID))
	unread, err := store.ListEntries(ctx, feedID, true)
	require.NoError(t, err)
	assert.Empty(t, unread)

	feeds, err := store.ListFeeds(ctx)
	require.NoError(t, err)
	require.Len(t, feeds, 1)
	assert.Zero(t, feeds[0].Unread)
}

func TestExportImportRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Subscribe(ctx, "https://a.example.com/feed", "Feed A")
	require.NoError(t, err)
	_, err = store.Subscribe(ctx, "https://b.example.com/feed", "Feed B")
	require.NoError(t, err)

	subs, err := store.ExportAll(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 2)

	other := openTestStore(t)
	stats, err := other.Import(ctx, subs)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Added)
	assert.Equal(t, 0, stats.Skipped)

	// Importing the same batch again only skips.
	stats, err = other.Import(ctx, subs)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Added)
	assert.Equal(t, 2, stats.Skipped)
}

func TestImportSkipsInvalidURLs(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	stats, err := store.Import(ctx, []models.Subscription{
		{Title: "good", URL: "example.com/feed"},
		{Title: "bad scheme", URL: "ftp://example.com/feed"},
		{Title: "empty", URL: "   "},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Added)
	assert.Equal(t, 2, stats.Skipped)

	subs, err := store.ExportAll(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "https://example.com/feed", subs[0].URL, "bare host normalized to https on import")
}

func TestSetLastError(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	feedID, err := store.Subscribe(ctx, "https://example.com/feed", "")
	require.NoError(t, err)

	require.NoError(t, store.SetLastError(ctx, feedID, "timeout fetching feed"))
	feed, err := store.GetFeed(ctx, feedID)
	require.NoError(t, err)
	assert.Equal(t, "timeout fetching feed", feed.LastError)

	// A successful merge clears the recorded failure.
	_, err = store.Merge(ctx, feedID, threeEntryFeed())
	require.NoError(t, err)
	feed, err = store.GetFeed(ctx, feedID)
	require.NoError(t, err)
	assert.Empty(t, feed.LastError)
}

func TestFeedActivity(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	feedID, err := store.Subscribe(ctx, "https://example.com/feed", "")
	require.NoError(t, err)

	today := time.Now().UTC().Truncate(24 * time.Hour).Add(6 * time.Hour)
	parsed := &models.ParsedFeed{Entries: []models.ParsedEntry{
		{ID: "e1", Title: "today one", Published: timePtr(today)},
		{ID: "e2", Title: "today two", Published: timePtr(today.Add(time.Hour))},
		{ID: "e3", Title: "yesterday", Published: timePtr(today.AddDate(0, 0, -1))},
	}}
	_, err = store.Merge(ctx, feedID, parsed)
	require.NoError(t, err)

	buckets, err := store.FeedActivity(ctx, feedID, 7)
	require.NoError(t, err)
	require.Len(t, buckets, 7)
	assert.EqualValues(t, 2, buckets[6].Count, "today")
	assert.EqualValues(t, 1, buckets[5].Count, "yesterday")
	assert.EqualValues(t, 0, buckets[0].Count, "empty days filled with zero")
}
