// Package engine runs the refresh, layout and animation pipeline behind the
// fraud network view.
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dd0wney/cluso-fraudgraph/pkg/animation"
	"github.com/dd0wney/cluso-fraudgraph/pkg/explain"
	"github.com/dd0wney/cluso-fraudgraph/pkg/feed"
	"github.com/dd0wney/cluso-fraudgraph/pkg/graph"
	"github.com/dd0wney/cluso-fraudgraph/pkg/interaction"
	"github.com/dd0wney/cluso-fraudgraph/pkg/logging"
	"github.com/dd0wney/cluso-fraudgraph/pkg/metrics"
	"github.com/dd0wney/cluso-fraudgraph/pkg/pubsub"
	"github.com/dd0wney/cluso-fraudgraph/pkg/visualization"
)

// Config holds the engine's timing and layout settings.
type Config struct {
	RefreshInterval   time.Duration
	AnimationDuration time.Duration
	FrameInterval     time.Duration
	ExplainTimeout    time.Duration
	Layout            visualization.LayoutConfig
	// SubscriberBuffer is the per-subscriber view buffer.
	SubscriberBuffer int
}

// DefaultConfig returns the reference timing: refresh every 5s, 600ms
// transitions at ~60fps.
func DefaultConfig() Config {
	return Config{
		RefreshInterval:   5 * time.Second,
		AnimationDuration: animation.DefaultDuration,
		FrameInterval:     animation.DefaultFrameInterval,
		ExplainTimeout:    5 * time.Second,
		Layout:            visualization.DefaultLayoutConfig(),
		SubscriberBuffer:  pubsub.DefaultBuffer,
	}
}

// Engine owns the refresh timer, the layout pipeline, the animator and the
// interaction controller. Start and Stop bracket every background goroutine.
type Engine struct {
	cfg     Config
	adapter *feed.Adapter
	logger  logging.Logger
	metrics *metrics.Registry

	layout     *visualization.Pipeline
	animator   *animation.Animator
	loop       *animation.FrameLoop
	controller *interaction.Controller
	broker     *pubsub.Broker[View]

	tick    atomic.Uint64
	alive   atomic.Bool
	fetches sync.WaitGroup

	applyMu     sync.Mutex
	lastApplied time.Time

	mu        sync.Mutex
	source    Source
	lastError string
	started   bool
	stopped   bool
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l logging.Logger) Option {
	return func(e *Engine) { e.logger = logging.OrNop(l) }
}

func WithMetrics(m *metrics.Registry) Option {
	return func(e *Engine) { e.metrics = m }
}

// New wires an engine. explainer serves node selections.
func New(adapter *feed.Adapter, explainer explain.Explainer, cfg Config, opts ...Option) *Engine {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultConfig().RefreshInterval
	}
	e := &Engine{
		cfg:     cfg,
		adapter: adapter,
		logger:  logging.NopLogger{},
		source:  SourceNone,
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(logging.Component("engine"))

	e.layout = visualization.NewPipeline(cfg.Layout,
		visualization.WithStageObserver(e.metrics.RecordLayoutStage))
	e.broker = pubsub.NewBroker[View](cfg.SubscriberBuffer)

	e.animator = animation.NewAnimator(cfg.AnimationDuration,
		animation.WithLogger(e.logger),
		animation.WithMetrics(e.metrics))
	e.loop = animation.NewFrameLoop(e.animator, cfg.FrameInterval, func(animation.Displayed) {
		e.publish(TopicFrame)
	})
	e.controller = interaction.NewController(explainer, e.lookup,
		interaction.WithLogger(e.logger),
		interaction.WithMetrics(e.metrics),
		interaction.WithTimeout(cfg.ExplainTimeout),
		interaction.WithOnChange(func(interaction.State) { e.publish(TopicInteraction) }))

	e.alive.Store(true)
	return e
}

// Start fetches immediately, then on every refresh interval, and starts the
// frame loop.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrStopped
	}
	if e.started {
		return ErrAlreadyStarted
	}
	e.started = true
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})

	if err := e.loop.Start(); err != nil {
		return err
	}
	go e.run(e.ctx, e.done)

	e.logger.Info("engine started",
		logging.Duration("refresh_interval", e.cfg.RefreshInterval),
		logging.Bool("relax", e.layout.Relaxing()))
	return nil
}

func (e *Engine) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	e.spawnRefresh(ctx, e.tick.Load())

	ticker := time.NewTicker(e.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Every timer tick advances the jitter phase, fetched or not.
			e.spawnRefresh(ctx, e.tick.Add(1))
		}
	}
}

// spawnRefresh runs a refresh in its own goroutine so that a slow fetch
// makes later ticks skip instead of queueing behind it.
func (e *Engine) spawnRefresh(ctx context.Context, tick uint64) {
	e.fetches.Add(1)
	go func() {
		defer e.fetches.Done()
		if _, err := e.refresh(ctx, tick); err != nil && !errors.Is(err, feed.ErrFetchInFlight) {
			e.logger.Debug("refresh ended", logging.Tick(tick), logging.Error(err))
		}
	}()
}

// Stop halts the timer and frame loop, cancels in-flight requests and waits
// for background goroutines. Responses arriving afterwards are discarded.
// Stop is idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	e.alive.Store(false)
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	e.fetches.Wait()
	e.loop.Stop()
	e.controller.Close()
	e.controller.Wait()
	e.broker.Shutdown()
	e.metrics.SetAnimating(false)

	e.logger.Info("engine stopped", logging.Tick(e.tick.Load()))
}

// RefreshNow performs one refresh outside the timer. It returns
// feed.ErrFetchInFlight when a fetch is already running.
func (e *Engine) RefreshNow(ctx context.Context) (feed.Outcome, error) {
	if !e.alive.Load() {
		return feed.Outcome{}, ErrStopped
	}
	return e.refresh(ctx, e.tick.Load())
}

func (e *Engine) refresh(ctx context.Context, tick uint64) (feed.Outcome, error) {
	out := e.adapter.Poll(ctx)
	if !e.alive.Load() {
		return out, ErrStopped
	}

	switch out.Kind {
	case feed.OutcomeSkipped:
		e.logger.Debug("refresh skipped, fetch in flight", logging.Tick(tick))
		return out, feed.ErrFetchInFlight

	case feed.OutcomeFresh:
		e.setSource(SourceLive, "")
		e.metrics.SetFallbackActive(false)
		e.apply(out.Snapshot, tick)

	case feed.OutcomeStale:
		// The last good snapshot is already the animator's target.
		e.setSource(SourceStale, errText(out.Err))
		e.metrics.SetFallbackActive(true)
		e.publish(TopicRefresh)

	case feed.OutcomePlaceholder:
		e.setSource(SourcePlaceholder, errText(out.Err))
		e.metrics.SetFallbackActive(true)
		if cur := e.animator.Snapshot(); cur == nil || !cur.Placeholder {
			e.apply(out.Snapshot, tick)
		} else {
			e.publish(TopicRefresh)
		}
	}
	return out, out.Err
}

// apply runs seed and relax and hands the result to the animator.
func (e *Engine) apply(snap *graph.Snapshot, tick uint64) {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	if !e.alive.Load() {
		return
	}
	if !snap.Placeholder && snap.RetrievedAt.Before(e.lastApplied) {
		e.logger.Debug("dropping out of order snapshot", logging.Tick(tick))
		return
	}
	if !snap.Placeholder {
		e.lastApplied = snap.RetrievedAt
	}

	frame := e.layout.ComputeLayout(snap, tick)
	e.animator.Retarget(animation.Target{Snapshot: snap, Frame: frame})
	e.controller.Reconcile()

	e.logger.Debug("layout applied",
		logging.Tick(tick),
		logging.Count(len(snap.Nodes)),
		logging.Bool("placeholder", snap.Placeholder))
	e.publish(TopicRefresh)
}

func (e *Engine) setSource(s Source, lastError string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.source = s
	e.lastError = lastError
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (e *Engine) lookup(id string) (graph.Node, bool) {
	return e.animator.Snapshot().Node(id)
}

// View returns the current frame for rendering.
func (e *Engine) View() View {
	v := buildView(e.animator.Displayed(), e.controller.State())
	v.Tick = e.tick.Load()
	v.Relax = e.layout.Relaxing()
	v.CanvasSize = e.cfg.Layout.CanvasSize

	e.mu.Lock()
	v.Source = e.source
	v.LastError = e.lastError
	e.mu.Unlock()
	if v.snapshot == nil {
		v.Source = SourceNone
	}
	return v
}

func (e *Engine) publish(topic string) {
	if e.broker.SubscriberCount(topic) == 0 {
		return
	}
	e.broker.Publish(topic, e.View())
}

// Subscribe streams views published on topic until ctx ends or the engine
// stops.
func (e *Engine) Subscribe(ctx context.Context, topic string) (*pubsub.Subscription[View], error) {
	return e.broker.Subscribe(ctx, topic)
}

// SetRelaxation enables or disables force relaxation from the next refresh.
func (e *Engine) SetRelaxation(enabled bool) {
	if e.layout.SetRelax(enabled) != enabled {
		e.logger.Info("relaxation toggled", logging.Bool("relax", enabled))
	}
}

// Relaxation reports whether force relaxation is enabled.
func (e *Engine) Relaxation() bool {
	return e.layout.Relaxing()
}

// Hover marks a displayed node as hovered.
func (e *Engine) Hover(id string) error {
	return e.controller.Hover(id)
}

// Unhover clears the hover.
func (e *Engine) Unhover() {
	e.controller.Unhover()
}

// Select requests the explanation for a displayed node and returns the
// request token.
func (e *Engine) Select(id string) (uint64, error) {
	if !e.alive.Load() {
		return 0, ErrStopped
	}
	e.mu.Lock()
	ctx := e.ctx
	e.mu.Unlock()
	return e.controller.Select(ctx, id)
}

// ClearSelection drops the selection.
func (e *Engine) ClearSelection() {
	e.controller.ClearSelection()
}

// Interaction returns the interaction state.
func (e *Engine) Interaction() interaction.State {
	return e.controller.State()
}

// Status reports feed and animator health.
type Status struct {
	Running   bool
	Source    Source
	Feed      feed.Status
	Animator  animation.State
	Progress  float64
	Tick      uint64
	Interval  time.Duration
	LastError string
}

// Status returns a health summary.
func (e *Engine) Status() Status {
	d := e.animator.Displayed()
	e.mu.Lock()
	defer e.mu.Unlock()
	src := e.source
	if d.Snapshot == nil {
		src = SourceNone
	}
	return Status{
		Running:   e.started && !e.stopped,
		Source:    src,
		Feed:      e.adapter.Status(),
		Animator:  d.State,
		Progress:  d.Progress,
		Tick:      e.tick.Load(),
		Interval:  e.cfg.RefreshInterval,
		LastError: e.lastError,
	}
}
