package visualization

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/dd0wney/cluso-fraudgraph/pkg/graph"
)

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func clampAll(pos []Position, lo, hi float64) {
	for i := range pos {
		pos[i].X = clamp(pos[i].X, lo, hi)
		pos[i].Y = clamp(pos[i].Y, lo, hi)
	}
}

// ScaleTo maps a canvas position onto a width x height grid, e.g. a
// terminal or an output bitmap.
func ScaleTo(p Position, canvasSize float64, width, height int) (int, int) {
	if canvasSize <= 0 || width <= 0 || height <= 0 {
		return 0, 0
	}
	x := int(math.Round(p.X / canvasSize * float64(width-1)))
	y := int(math.Round(p.Y / canvasSize * float64(height-1)))
	return clampInt(x, 0, width-1), clampInt(y, 0, height-1)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// StageObserver receives the duration of each layout stage, "seed" or
// "relax".
type StageObserver func(stage string, d time.Duration)

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithStageObserver reports stage timings to fn.
func WithStageObserver(fn StageObserver) PipelineOption {
	return func(p *Pipeline) { p.observe = fn }
}

// Pipeline seeds and, when enabled, relaxes a snapshot. Relaxation can be
// toggled while layouts are being computed.
type Pipeline struct {
	seeder  *RadialSeeder
	relaxer *ForceRelaxer
	relax   atomic.Bool
	observe StageObserver
}

// NewPipeline builds the seed and relax stages from one configuration.
func NewPipeline(config LayoutConfig, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		seeder:  NewRadialSeeder(config),
		relaxer: NewForceRelaxer(config),
		observe: func(string, time.Duration) {},
	}
	p.relax.Store(config.Relax)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetRelax enables or disables relaxation and returns the previous setting.
func (p *Pipeline) SetRelax(enabled bool) bool {
	return p.relax.Swap(enabled)
}

// Relaxing reports whether relaxation is enabled.
func (p *Pipeline) Relaxing() bool {
	return p.relax.Load()
}

// ComputeLayout implements Layout.
func (p *Pipeline) ComputeLayout(snap *graph.Snapshot, tick uint64) Frame {
	start := time.Now()
	frame := p.seeder.Seed(snap, tick)
	p.observe("seed", time.Since(start))
	if !p.relax.Load() {
		return frame
	}

	start = time.Now()
	frame = p.relaxer.Relax(frame, snap)
	p.observe("relax", time.Since(start))
	return frame
}
