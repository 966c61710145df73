package fetcher

import (
	"fmt"
	"net/http"
)

// Kind classifies a fetch failure
type Kind string

// Fetch failure kinds
const (
	KindNetwork      Kind = "network"
	KindTimeout      Kind = "timeout"
	KindHTTPStatus   Kind = "http_status"
	KindBodyTooLarge Kind = "body_too_large"
)

// Error is returned by Fetch for every failed attempt
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int
	Limit      int64
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	case KindBodyTooLarge:
		return fmt.Sprintf("fetch %s: response exceeds %d bytes", e.URL, e.Limit)
	case KindTimeout:
		return fmt.Sprintf("fetch %s: timed out: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch %s: network error: %v", e.URL, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying the same request may succeed.
// Client errors (4xx) other than 429 and oversized bodies are permanent.
func (e *Error) Transient() bool {
	switch e.Kind {
	case KindHTTPStatus:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	case KindBodyTooLarge:
		return false
	default:
		return true
	}
}
