// Package animation tweens the displayed layout toward each new target
// frame.
package animation

import (
	"sync"
	"time"

	"github.com/dd0wney/cluso-fraudgraph/pkg/graph"
	"github.com/dd0wney/cluso-fraudgraph/pkg/logging"
	"github.com/dd0wney/cluso-fraudgraph/pkg/metrics"
	"github.com/dd0wney/cluso-fraudgraph/pkg/visualization"
)

// DefaultDuration is the length of one transition.
const DefaultDuration = 600 * time.Millisecond

// State is the animator state.
type State int

const (
	Idle State = iota
	Animating
)

func (s State) String() string {
	if s == Animating {
		return "animating"
	}
	return "idle"
}

// Target is a snapshot together with its relaxed layout.
type Target struct {
	Snapshot *graph.Snapshot
	Frame    visualization.Frame
}

// Displayed is what should be drawn right now.
type Displayed struct {
	Snapshot *graph.Snapshot
	Frame    visualization.Frame
	State    State
	Progress float64
	Pending  bool
}

// Animator owns the displayed frame. A target received mid-transition is
// held as pending, replacing any earlier pending target, and starts once
// the current transition completes.
type Animator struct {
	duration time.Duration
	now      func() time.Time
	logger   logging.Logger
	metrics  *metrics.Registry

	mu        sync.Mutex
	state     State
	from      visualization.Frame
	target    *Target
	pending   *Target
	started   time.Time
	progress  float64
	displayed visualization.Frame
	snapshot  *graph.Snapshot
}

// Option configures an Animator.
type Option func(*Animator)

func WithLogger(l logging.Logger) Option {
	return func(a *Animator) { a.logger = logging.OrNop(l) }
}

func WithMetrics(m *metrics.Registry) Option {
	return func(a *Animator) { a.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(a *Animator) { a.now = now }
}

// NewAnimator creates an idle animator with nothing displayed.
func NewAnimator(duration time.Duration, opts ...Option) *Animator {
	if duration < 0 {
		duration = 0
	}
	a := &Animator{
		duration: duration,
		now:      time.Now,
		logger:   logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(logging.Component("animator"))
	return a
}

// Retarget hands the animator a new target. With nothing displayed yet the
// target is applied at once; while animating it is queued.
func (a *Animator) Retarget(t Target) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case a.displayed == nil:
		a.apply(t)
		a.logger.Debug("target applied without transition", logging.Count(len(t.Frame)))
	case a.state == Animating:
		a.pending = &t
		a.metrics.RecordAnimationQueued()
		a.logger.Debug("target queued behind running transition", logging.Count(len(t.Frame)))
	default:
		a.begin(t, a.now())
	}
}

// Step advances the transition to now and reports whether the displayed
// frame changed. Idle animators do nothing.
func (a *Animator) Step(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != Animating {
		return false
	}

	t := 1.0
	if a.duration > 0 {
		t = float64(now.Sub(a.started)) / float64(a.duration)
	}
	a.progress = clampUnit(t)
	a.displayed = Interpolate(a.from, a.target.Frame, t)
	a.metrics.RecordAnimationFrame()

	if t >= 1 {
		a.state = Idle
		a.from = nil
		a.metrics.SetAnimating(false)
		if a.pending != nil {
			next := *a.pending
			a.pending = nil
			a.begin(next, now)
		}
	}
	return true
}

// Displayed returns the current frame and state. The frame must not be
// modified by the caller.
func (a *Animator) Displayed() Displayed {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Displayed{
		Snapshot: a.snapshot,
		Frame:    a.displayed,
		State:    a.state,
		Progress: a.progress,
		Pending:  a.pending != nil,
	}
}

// State returns the animator state.
func (a *Animator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Snapshot returns the snapshot of the current target, or nil before the
// first target.
func (a *Animator) Snapshot() *graph.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot
}

// apply shows t immediately. Callers hold a.mu.
func (a *Animator) apply(t Target) {
	a.target = &t
	a.snapshot = t.Snapshot
	a.displayed = t.Frame.Clone()
	a.from = nil
	a.progress = 1
	a.state = Idle
}

// begin starts a transition from the displayed frame. Callers hold a.mu.
func (a *Animator) begin(t Target, at time.Time) {
	a.from = a.displayed
	a.target = &t
	a.snapshot = t.Snapshot
	a.started = at
	a.progress = 0
	a.state = Animating
	a.metrics.RecordAnimationStarted()
	a.metrics.SetAnimating(true)
}

// Interpolate blends from toward to at progress t. The result holds exactly
// the nodes of to; nodes absent from from start at their target. t is
// clamped to [0,1], and t=1 yields the target positions exactly.
func Interpolate(from, to visualization.Frame, t float64) visualization.Frame {
	t = clampUnit(t)
	out := make(visualization.Frame, len(to))
	for id, target := range to {
		if t == 1 {
			out[id] = target
			continue
		}
		start, ok := from[id]
		if !ok {
			out[id] = target
			continue
		}
		out[id] = visualization.Position{
			X: start.X + (target.X-start.X)*t,
			Y: start.Y + (target.Y-start.Y)*t,
		}
	}
	return out
}

func clampUnit(t float64) float64 {
	if t < 0 || t != t {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
