package parse

import (
	"bytes"
	"fmt"
	"tidings/models"

	"github.com/mmcdole/gofeed"
)

// Error is a classified parse failure, raised only when the document cannot
// be recognized as a feed at all. Per-entry defects degrade fields instead.
type Error struct {
	Kind models.ErrorKind
	err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("malformed feed document: %v", e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Parse decodes a raw feed body into its canonical form. gofeed detects the
// dialect from the document root, so lying content-type headers don't matter.
func Parse(body []byte) (*models.ParsedFeed, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: models.ErrorKindMalformedDocument, err: err}
	}

	parsed := &models.ParsedFeed{
		Title:   feed.Title,
		Entries: make([]models.ParsedEntry, 0, len(feed.Items)),
	}

	for _, item := range feed.Items {
		entry := models.ParsedEntry{
			ID:    item.GUID,
			Title: item.Title,
			Link:  item.Link,
			Body:  item.Content,
		}
		if entry.Body == "" {
			entry.Body = item.Description
		}
		// Best-effort date: gofeed already tried the common formats. An
		// unparseable date leaves Published nil rather than failing the entry.
		if item.PublishedParsed != nil {
			entry.Published = item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			entry.Published = item.UpdatedParsed
		}
		parsed.Entries = append(parsed.Entries, entry)
	}

	return parsed, nil
}
