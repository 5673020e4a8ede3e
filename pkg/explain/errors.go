package explain

import (
	"errors"
	"fmt"
)

// Error reports a failed explanation lookup. StatusCode is zero for
// transport failures.
type Error struct {
	Key        string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.StatusCode != 0:
		return fmt.Sprintf("explain %s: status %d: %s", e.Key, e.StatusCode, e.Message)
	case e.Message != "":
		return fmt.Sprintf("explain %s: %s", e.Key, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("explain %s: status %d", e.Key, e.StatusCode)
	default:
		return fmt.Sprintf("explain %s: %v", e.Key, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// AsError converts any lookup failure into an *Error for key.
func AsError(key string, err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Key: key, Message: err.Error(), Err: err}
}
