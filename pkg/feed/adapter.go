package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dd0wney/cluso-fraudgraph/pkg/graph"
	"github.com/dd0wney/cluso-fraudgraph/pkg/logging"
	"github.com/dd0wney/cluso-fraudgraph/pkg/metrics"
)

// OutcomeKind says what a poll produced for display.
type OutcomeKind int

const (
	// OutcomeFresh carries a newly fetched snapshot to lay out.
	OutcomeFresh OutcomeKind = iota
	// OutcomeStale means the fetch failed and the last good snapshot stays displayed.
	OutcomeStale
	// OutcomePlaceholder means the fetch failed and nothing good was ever received.
	OutcomePlaceholder
	// OutcomeSkipped means a previous fetch was still running.
	OutcomeSkipped
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeFresh:
		return "fresh"
	case OutcomeStale:
		return "stale"
	case OutcomePlaceholder:
		return "placeholder"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Outcome is the result of Poll after the fallback policy is applied.
type Outcome struct {
	Kind     OutcomeKind
	Snapshot *graph.Snapshot
	Err      error
}

// Status summarises feed health.
type Status struct {
	HasSnapshot         bool
	LastSuccess         time.Time
	LastError           error
	ConsecutiveFailures int
}

// Adapter retrieves snapshots, normalizes them and applies the fallback
// policy. At most one fetch runs at a time.
type Adapter struct {
	source  Source
	logger  logging.Logger
	metrics *metrics.Registry
	now     func() time.Time

	inFlight atomic.Bool

	mu       sync.Mutex
	lastGood *graph.Snapshot
	status   Status
}

// Option configures an Adapter.
type Option func(*Adapter)

func WithLogger(l logging.Logger) Option {
	return func(a *Adapter) { a.logger = logging.OrNop(l) }
}

func WithMetrics(m *metrics.Registry) Option {
	return func(a *Adapter) { a.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// NewAdapter creates an adapter reading from source.
func NewAdapter(source Source, opts ...Option) *Adapter {
	a := &Adapter{
		source: source,
		logger: logging.NopLogger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(logging.Component("feed"))
	return a
}

// Fetch retrieves and normalizes one snapshot. It fails with a
// *NetworkError, a *ParseError, or ErrFetchInFlight when another fetch has
// not resolved yet.
func (a *Adapter) Fetch(ctx context.Context) (*graph.Snapshot, error) {
	if !a.inFlight.CompareAndSwap(false, true) {
		a.metrics.RecordFeedFetch("skipped", 0)
		return nil, ErrFetchInFlight
	}
	defer a.inFlight.Store(false)

	start := time.Now()
	snap, err := a.fetch(ctx)
	elapsed := time.Since(start)

	a.mu.Lock()
	defer a.mu.Unlock()

	if err != nil {
		a.status.LastError = err
		a.status.ConsecutiveFailures++
		outcome := "network_error"
		if IsParseError(err) {
			outcome = "parse_error"
		}
		a.metrics.RecordFeedFetch(outcome, elapsed)
		a.logger.Warn("snapshot fetch failed",
			logging.Outcome(outcome),
			logging.Int("consecutive_failures", a.status.ConsecutiveFailures),
			logging.Latency(elapsed),
			logging.Error(err))
		return nil, err
	}

	a.lastGood = snap
	a.status.HasSnapshot = true
	a.status.LastSuccess = snap.RetrievedAt
	a.status.LastError = nil
	a.status.ConsecutiveFailures = 0

	a.metrics.RecordFeedFetch("success", elapsed)
	a.metrics.RecordSnapshot(len(snap.Nodes), len(snap.Links), snap.DroppedLinks, snap.RetrievedAt)
	if snap.DroppedLinks > 0 {
		a.logger.Debug("dropped dangling links", logging.Count(snap.DroppedLinks))
	}
	if snap.DroppedNodes > 0 {
		a.logger.Warn("dropped nodes with duplicate identity", logging.Count(snap.DroppedNodes))
	}
	return snap, nil
}

func (a *Adapter) fetch(ctx context.Context) (*graph.Snapshot, error) {
	body, err := a.source.Fetch(ctx)
	if err != nil {
		if IsNetworkError(err) || IsParseError(err) {
			return nil, err
		}
		return nil, &NetworkError{Err: err}
	}
	return Decode(body, a.now())
}

// Poll fetches and applies the fallback policy: a failed fetch keeps the
// last good snapshot, or substitutes the placeholder graph if there is none.
func (a *Adapter) Poll(ctx context.Context) Outcome {
	snap, err := a.Fetch(ctx)
	switch {
	case err == nil:
		return Outcome{Kind: OutcomeFresh, Snapshot: snap}
	case errors.Is(err, ErrFetchInFlight):
		return Outcome{Kind: OutcomeSkipped, Err: err}
	}

	if last := a.LastGood(); last != nil {
		return Outcome{Kind: OutcomeStale, Snapshot: last, Err: err}
	}
	return Outcome{Kind: OutcomePlaceholder, Snapshot: graph.Placeholder(a.now()), Err: err}
}

// LastGood returns the most recent successfully fetched snapshot, or nil.
func (a *Adapter) LastGood() *graph.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastGood
}

// InFlight reports whether a fetch is currently running.
func (a *Adapter) InFlight() bool {
	return a.inFlight.Load()
}

// Status returns a copy of the feed status.
func (a *Adapter) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}
