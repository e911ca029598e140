package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"tidings/models"

	log "github.com/sirupsen/logrus"
)

// Error is a classified fetch failure. Kind tells the caller what went wrong
// in terms it can act on; StatusCode is set for ErrorKindHTTPStatus only.
type Error struct {
	Kind       models.ErrorKind
	StatusCode int
	URL        string
	err        error
}

func (e *Error) Error() string {
	if e.Kind == models.ErrorKindHTTPStatus {
		return StatusMessage(e.StatusCode, e.URL)
	}
	if e.err != nil {
		return fmt.Sprintf("%s fetching %s: %v", e.Kind, e.URL, e.err)
	}
	return fmt.Sprintf("%s fetching %s", e.Kind, e.URL)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Fetcher performs one bounded HTTP GET per feed URL. It holds no mutable
// state and is safe for concurrent use.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

// New returns a fetcher whose requests are bounded by timeout and whose
// response bodies are capped at maxBytes.
func New(timeout time.Duration, maxBytes int64, userAgent string) *Fetcher {
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		maxBytes:  maxBytes,
	}
}

// NormalizeURL validates a raw feed URL and puts it in canonical form. A bare
// host gets an https scheme; anything that is not http or https is rejected.
func NormalizeURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", &Error{Kind: models.ErrorKindInvalidURL, URL: raw, err: errors.New("feed url cannot be empty")}
	}

	candidate := trimmed
	if !strings.Contains(trimmed, "://") {
		candidate = "https://" + trimmed
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", &Error{Kind: models.ErrorKindInvalidURL, URL: raw, err: err}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", &Error{
			Kind: models.ErrorKindInvalidURL,
			URL:  raw,
			err:  fmt.Errorf("unsupported url scheme %q, only http and https are allowed", parsed.Scheme),
		}
	}
	if parsed.Host == "" {
		return "", &Error{Kind: models.ErrorKindInvalidURL, URL: raw, err: errors.New("feed url has no host")}
	}

	return parsed.String(), nil
}

// Fetch retrieves the body at feedURL, streaming it under the byte cap. The
// URL is normalized first; no network access happens for an invalid URL.
// Cancelling ctx aborts the in-flight request.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]byte, error) {
	normalized, err := NormalizeURL(feedURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, normalized, nil)
	if err != nil {
		return nil, &Error{Kind: models.ErrorKindInvalidURL, URL: normalized, err: err}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransport(normalized, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Kind: models.ErrorKindHTTPStatus, StatusCode: resp.StatusCode, URL: normalized}
	}

	// Read one byte past the cap so we can tell "exactly at the limit" from
	// "over it". Oversized bodies are discarded, never truncated and returned.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, classifyTransport(normalized, err)
	}
	if int64(len(body)) > f.maxBytes {
		log.WithFields(log.Fields{
			"url":      normalized,
			"maxBytes": f.maxBytes,
		}).Warn("Feed body exceeds size cap, discarding")
		return nil, &Error{Kind: models.ErrorKindBodyTooLarge, URL: normalized}
	}

	return body, nil
}

func classifyTransport(url string, err error) *Error {
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: models.ErrorKindConnection, URL: url, err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: models.ErrorKindTimeout, URL: url, err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: models.ErrorKindTimeout, URL: url, err: err}
	}
	return &Error{Kind: models.ErrorKindConnection, URL: url, err: err}
}

// StatusMessage turns a non-2xx response into guidance the caller can show
// directly to the user.
func StatusMessage(status int, url string) string {
	switch {
	case status == 400:
		return fmt.Sprintf("bad request (400) fetching feed %s. the server rejected the request - check the url", url)
	case status == 401:
		return fmt.Sprintf("unauthorized (401) fetching feed %s. authentication may be required", url)
	case status == 403:
		return fmt.Sprintf("forbidden (403) fetching feed %s. access denied - the server refused the request", url)
	case status == 404:
		return fmt.Sprintf("not found (404) fetching feed %s. the feed url may be incorrect or the feed may have been removed", url)
	case status == 408:
		return fmt.Sprintf("request timeout (408) fetching feed %s. the server took too long to respond", url)
	case status == 429:
		return fmt.Sprintf("too many requests (429) fetching feed %s. rate limited - wait a moment and try again", url)
	case status >= 500 && status <= 599:
		return fmt.Sprintf("server error (%d) fetching feed %s. this could be temporary - check the site in a browser and try again later", status, url)
	case status >= 300 && status <= 399:
		return fmt.Sprintf("redirect error (%d). the server returned an unexpected redirect for feed %s", status, url)
	default:
		return fmt.Sprintf("unexpected status code %d fetching feed %s", status, url)
	}
}
