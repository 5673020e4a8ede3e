package feed

import (
	"errors"
	"fmt"
)

// ErrFetchInFlight is returned when a fetch is requested while the previous
// one has not resolved. The caller skips the tick; nothing is queued.
var ErrFetchInFlight = errors.New("feed: previous fetch still in flight")

// NetworkError reports a transport failure or a non-2xx response.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("feed: %s returned status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("feed: fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError reports a payload that could not be turned into a snapshot.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("feed: malformed snapshot: %s: %v", e.Reason, e.Err)
	}
	return "feed: malformed snapshot: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err is, or wraps, a *NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsParseError reports whether err is, or wraps, a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
