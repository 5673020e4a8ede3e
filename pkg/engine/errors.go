package engine

import "errors"

var (
	// ErrStopped is returned by operations on an engine that has been stopped.
	ErrStopped = errors.New("engine: stopped")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("engine: already started")
)
