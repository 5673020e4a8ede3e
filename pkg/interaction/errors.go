package interaction

import "errors"

var (
	// ErrNodeNotDisplayed is returned when hovering or selecting a node that
	// is not in the displayed snapshot.
	ErrNodeNotDisplayed = errors.New("interaction: node not displayed")

	// ErrClosed is returned by Select after Close.
	ErrClosed = errors.New("interaction: controller closed")
)
