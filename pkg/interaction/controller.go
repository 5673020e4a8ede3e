// Package interaction tracks hover and selection on the displayed graph and
// resolves explanations for the selected node.
package interaction

import (
	"context"
	"sync"
	"time"

	"github.com/dd0wney/cluso-fraudgraph/pkg/explain"
	"github.com/dd0wney/cluso-fraudgraph/pkg/graph"
	"github.com/dd0wney/cluso-fraudgraph/pkg/logging"
	"github.com/dd0wney/cluso-fraudgraph/pkg/metrics"
)

// Lookup resolves a node identity against what is currently displayed.
type Lookup func(id string) (graph.Node, bool)

// State is the interaction surface shown next to the graph.
type State struct {
	Hovered     string               `json:"hovered,omitempty"`
	Selected    string               `json:"selected,omitempty"`
	Key         string               `json:"key,omitempty"`
	Token       uint64               `json:"token"`
	Loading     bool                 `json:"loading"`
	Explanation *explain.Explanation `json:"explanation,omitempty"`
	Err         *explain.Error       `json:"-"`
}

// ErrorMessage returns the explanation error text, or "".
func (s State) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// Controller serializes interaction state. Only the response to the most
// recent selection may change it.
type Controller struct {
	explainer explain.Explainer
	lookup    Lookup
	timeout   time.Duration
	logger    logging.Logger
	metrics   *metrics.Registry
	onChange  func(State)

	mu     sync.Mutex
	state  State
	token  uint64
	cancel context.CancelFunc
	closed bool

	wg sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

func WithLogger(l logging.Logger) Option {
	return func(c *Controller) { c.logger = logging.OrNop(l) }
}

func WithMetrics(m *metrics.Registry) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithTimeout bounds each explanation request.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithOnChange registers a callback invoked, outside the lock, after every
// state change.
func WithOnChange(fn func(State)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// NewController creates a controller. lookup decides which nodes can be
// hovered or selected.
func NewController(explainer explain.Explainer, lookup Lookup, opts ...Option) *Controller {
	c := &Controller{
		explainer: explainer,
		lookup:    lookup,
		logger:    logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logging.Component("interaction"))
	return c
}

// Hover marks id as hovered.
func (c *Controller) Hover(id string) error {
	if _, ok := c.lookup(id); !ok {
		return ErrNodeNotDisplayed
	}
	c.mu.Lock()
	changed := c.state.Hovered != id
	c.state.Hovered = id
	st := c.state
	c.mu.Unlock()

	if changed {
		c.notify(st)
	}
	return nil
}

// Unhover clears the hovered node.
func (c *Controller) Unhover() {
	c.mu.Lock()
	changed := c.state.Hovered != ""
	c.state.Hovered = ""
	st := c.state
	c.mu.Unlock()

	if changed {
		c.notify(st)
	}
}

// Select starts an explanation request for id and returns its token. Any
// earlier request is cancelled and its response will be discarded. The
// request context derives from ctx and must outlive the call.
func (c *Controller) Select(ctx context.Context, id string) (uint64, error) {
	node, ok := c.lookup(id)
	if !ok {
		return 0, ErrNodeNotDisplayed
	}
	key := node.ExplainKey()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrClosed
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.token++
	token := c.token

	var reqCtx context.Context
	var cancel context.CancelFunc
	if c.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
	} else {
		reqCtx, cancel = context.WithCancel(ctx)
	}
	c.cancel = cancel

	c.state.Selected = id
	c.state.Key = key
	c.state.Token = token
	c.state.Loading = true
	c.state.Explanation = nil
	c.state.Err = nil
	st := c.state
	c.wg.Add(1)
	c.mu.Unlock()

	c.logger.Debug("explanation requested", logging.NodeID(id), logging.Token(token))
	c.notify(st)

	go c.resolve(reqCtx, cancel, token, key)
	return token, nil
}

func (c *Controller) resolve(ctx context.Context, cancel context.CancelFunc, token uint64, key string) {
	defer c.wg.Done()
	defer cancel()

	start := time.Now()
	exp, err := c.explainer.Explain(ctx, key)
	elapsed := time.Since(start)

	c.mu.Lock()
	if c.closed || token != c.token {
		c.mu.Unlock()
		c.metrics.RecordExplain("stale", elapsed)
		c.logger.Debug("discarded superseded explanation", logging.Token(token), logging.String("key", key))
		return
	}
	c.state.Loading = false
	if err != nil {
		c.state.Err = explain.AsError(key, err)
		c.state.Explanation = nil
	} else {
		c.state.Explanation = exp
		c.state.Err = nil
	}
	c.cancel = nil
	st := c.state
	c.mu.Unlock()

	if err != nil {
		c.metrics.RecordExplain("error", elapsed)
		c.logger.Warn("explanation failed", logging.Token(token), logging.String("key", key), logging.Error(err))
	} else {
		c.metrics.RecordExplain("success", elapsed)
	}
	c.notify(st)
}

// ClearSelection drops the selection and invalidates any pending request.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.token++
	hovered := c.state.Hovered
	c.state = State{Hovered: hovered, Token: c.token}
	st := c.state
	c.mu.Unlock()

	c.notify(st)
}

// Reconcile clears the hover when its node left the display. The selection
// and its explanation are kept.
func (c *Controller) Reconcile() {
	c.mu.Lock()
	hovered := c.state.Hovered
	c.mu.Unlock()
	if hovered == "" {
		return
	}
	if _, ok := c.lookup(hovered); !ok {
		c.mu.Lock()
		if c.state.Hovered == hovered {
			c.state.Hovered = ""
		}
		st := c.state
		c.mu.Unlock()
		c.notify(st)
	}
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close cancels any in-flight request; responses arriving afterwards are
// discarded. Close does not wait; use Wait for that.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Wait blocks until every request goroutine has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) notify(st State) {
	if c.onChange != nil {
		c.onChange(st)
	}
}
