package models

import "fmt"

// ErrorKind classifies everything that can go wrong during a refresh so the
// caller can present actionable guidance rather than a raw error string.
type ErrorKind string

const (
	ErrorKindInvalidURL        ErrorKind = "invalid_url"
	ErrorKindConnection        ErrorKind = "connection_error"
	ErrorKindTimeout           ErrorKind = "timeout"
	ErrorKindHTTPStatus        ErrorKind = "http_status"
	ErrorKindBodyTooLarge      ErrorKind = "body_too_large"
	ErrorKindMalformedDocument ErrorKind = "malformed_document"
	ErrorKindDuplicateFeed     ErrorKind = "duplicate_feed"
	ErrorKindStoreIO           ErrorKind = "store_io_error"
)

// OutcomeState is what happened to one feed during a refresh round.
type OutcomeState string

const (
	StateUnchanged OutcomeState = "unchanged"
	StateUpdated   OutcomeState = "updated"
	StateFailed    OutcomeState = "failed"
	StateSkipped   OutcomeState = "skipped"
	StateCancelled OutcomeState = "cancelled"
)

// RefreshOutcome is produced per feed by the sync coordinator and handed to
// the caller. It is never persisted; feeds.last_error keeps the durable
// record of failures.
type RefreshOutcome struct {
	FeedID  int64
	State   OutcomeState
	Changed int
	Kind    ErrorKind
	Message string
}

func Unchanged(feedID int64) RefreshOutcome {
	return RefreshOutcome{FeedID: feedID, State: StateUnchanged}
}

func Updated(feedID int64, changed int) RefreshOutcome {
	return RefreshOutcome{FeedID: feedID, State: StateUpdated, Changed: changed}
}

func Failed(feedID int64, kind ErrorKind, message string) RefreshOutcome {
	return RefreshOutcome{FeedID: feedID, State: StateFailed, Kind: kind, Message: message}
}

func Skipped(feedID int64) RefreshOutcome {
	return RefreshOutcome{FeedID: feedID, State: StateSkipped}
}

func Cancelled(feedID int64) RefreshOutcome {
	return RefreshOutcome{FeedID: feedID, State: StateCancelled}
}

func (o RefreshOutcome) String() string {
	switch o.State {
	case StateUpdated:
		return fmt.Sprintf("updated (%d entries)", o.Changed)
	case StateFailed:
		return fmt.Sprintf("failed (%s): %s", o.Kind, o.Message)
	default:
		return string(o.State)
	}
}
