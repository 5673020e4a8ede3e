package animation

import (
	"errors"
	"sync"
	"time"
)

// DefaultFrameInterval paces the frame loop at roughly 60 frames a second.
const DefaultFrameInterval = 16 * time.Millisecond

// ErrLoopRunning is returned by Start on a loop that is already running.
var ErrLoopRunning = errors.New("animation: frame loop already running")

// FrameLoop drives an Animator on a fixed interval and reports every frame
// that changed the display.
type FrameLoop struct {
	animator *Animator
	interval time.Duration
	onFrame  func(Displayed)

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewFrameLoop creates a stopped loop. onFrame may be nil.
func NewFrameLoop(a *Animator, interval time.Duration, onFrame func(Displayed)) *FrameLoop {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &FrameLoop{animator: a, interval: interval, onFrame: onFrame}
}

// Start launches the loop goroutine.
func (l *FrameLoop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return ErrLoopRunning
	}
	l.running = true
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go l.run(l.stop, l.done)
	return nil
}

// Stop halts the loop and waits for its goroutine to exit. Calling Stop on
// a stopped loop is a no-op. No frame callback runs after Stop returns.
func (l *FrameLoop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	stop, done := l.stop, l.done
	l.mu.Unlock()

	close(stop)
	<-done
}

// Running reports whether the loop is active.
func (l *FrameLoop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *FrameLoop) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !l.animator.Step(l.animator.now()) {
				continue
			}
			if l.onFrame != nil {
				l.onFrame(l.animator.Displayed())
			}
		}
	}
}
