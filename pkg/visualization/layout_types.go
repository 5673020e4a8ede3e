// Package visualization computes stable 2D layouts for entity graph
// snapshots on a fixed logical canvas.
package visualization

import (
	"math"

	"github.com/dd0wney/cluso-fraudgraph/pkg/graph"
)

// Position represents a 2D coordinate on the logical canvas
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance between two positions.
func (p Position) Distance(q Position) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Frame maps node identity to position. A new frame is produced on every
// refresh; frames are not mutated once handed to the animator.
type Frame map[string]Position

// Clone returns an independent copy of f.
func (f Frame) Clone() Frame {
	out := make(Frame, len(f))
	for id, p := range f {
		out[id] = p
	}
	return out
}

// LayoutConfig configures layout parameters. Distances are in logical
// canvas units; the canvas is square.
type LayoutConfig struct {
	CanvasSize      float64 `yaml:"canvas_size" validate:"gt=0"`
	Margin          float64 `yaml:"margin" validate:"gte=0"`
	BaseRadius      float64 `yaml:"base_radius" validate:"gt=0"`
	RiskRadiusScale float64 `yaml:"risk_radius_scale" validate:"gte=0"`
	JitterPeriod    int     `yaml:"jitter_period" validate:"gte=1"`
	WedgeRotation   float64 `yaml:"wedge_rotation"`

	Relax          bool    `yaml:"relax"`
	Iterations     int     `yaml:"iterations" validate:"gte=0,lte=500"`
	MinSeparation  float64 `yaml:"min_separation" validate:"gt=0"`
	Repulsion      float64 `yaml:"repulsion" validate:"gte=0"`
	Epsilon        float64 `yaml:"epsilon" validate:"gt=0"`
	RestLength     float64 `yaml:"rest_length" validate:"gt=0"`
	SpringConstant float64 `yaml:"spring_constant" validate:"gte=0,lte=0.5"`
}

// DefaultLayoutConfig returns the dashboard's reference geometry: a 300x300
// canvas, 20 relaxation passes, 40-unit links.
func DefaultLayoutConfig() LayoutConfig {
	return LayoutConfig{
		CanvasSize:      300,
		Margin:          15,
		BaseRadius:      110,
		RiskRadiusScale: 40,
		JitterPeriod:    7,
		Relax:           true,
		Iterations:      20,
		MinSeparation:   14,
		Repulsion:       0.4,
		Epsilon:         0.001,
		RestLength:      40,
		SpringConstant:  0.05,
	}
}

// Center is the middle of the canvas.
func (c LayoutConfig) Center() Position {
	return Position{X: c.CanvasSize / 2, Y: c.CanvasSize / 2}
}

// Layout produces a frame for a snapshot at a refresh tick.
type Layout interface {
	ComputeLayout(snap *graph.Snapshot, tick uint64) Frame
}
