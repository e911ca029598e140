package models

import "time"

// Feed is a subscribed remote source, identified by its normalized URL.
// The display title is user-settable and independent of whatever title
// the feed document supplies.
type Feed struct {
	ID              int64      `json:"id"`
	URL             string     `json:"url"`
	Title           string     `json:"title"`
	CreatedAt       time.Time  `json:"createdAt"`
	LastRefreshedAt *time.Time `json:"lastRefreshedAt,omitempty"`
	LastError       string     `json:"lastError,omitempty"`
}

// FeedWithUnread pairs a feed with its unread entry count for listing.
type FeedWithUnread struct {
	Feed   Feed  `json:"feed"`
	Unread int64 `json:"unread"`
}

// Entry is one item belonging to a feed. EntryKey is unique within the
// owning feed and is how re-fetched remote items find their stored row.
type Entry struct {
	ID          int64      `json:"id"`
	FeedID      int64      `json:"feedId"`
	EntryKey    string     `json:"-"`
	Title       string     `json:"title"`
	Body        string     `json:"body,omitempty"`
	Link        string     `json:"link"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	Read        bool       `json:"read"`
	FirstSeenAt time.Time  `json:"firstSeenAt"`
	FeedTitle   string     `json:"feedTitle,omitempty"`
}

// ParsedFeed is the canonical decoded form of a fetched feed document.
type ParsedFeed struct {
	Title   string
	Entries []ParsedEntry
}

// ParsedEntry is a single raw item out of the parser. ID is the feed's own
// item identifier (guid / Atom id) and may be empty; Published is nil when
// the document carried no parseable date.
type ParsedEntry struct {
	ID        string
	Title     string
	Link      string
	Body      string
	Published *time.Time
}

// Subscription is the (title, url) pair exchanged at the export/import
// boundary.
type Subscription struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// MergeStats reports what a single merge did.
type MergeStats struct {
	Inserted  int
	Updated   int
	Unchanged int
}

// Changed is the number of entries the merge actually wrote.
func (s MergeStats) Changed() int {
	return s.Inserted + s.Updated
}

// ImportStats reports the outcome of a subscription import batch.
type ImportStats struct {
	Added   int
	Skipped int
}

// ActivityBucket is one day of entry counts for a feed.
type ActivityBucket struct {
	Day   time.Time `json:"day"`
	Count int64     `json:"count"`
}
