package visualization

import (
	"hash/fnv"
	"math"

	"github.com/dd0wney/cluso-fraudgraph/pkg/graph"
)

// RadialSeeder places nodes in category wedges around the canvas center,
// with riskier nodes closer to the middle.
type RadialSeeder struct {
	config LayoutConfig
}

// NewRadialSeeder creates a seeder; zero-valued geometry falls back to defaults.
func NewRadialSeeder(config LayoutConfig) *RadialSeeder {
	def := DefaultLayoutConfig()
	if config.CanvasSize == 0 {
		config.CanvasSize = def.CanvasSize
	}
	if config.BaseRadius == 0 {
		config.BaseRadius = def.BaseRadius
	}
	if config.JitterPeriod == 0 {
		config.JitterPeriod = def.JitterPeriod
	}
	return &RadialSeeder{config: config}
}

// Seed computes deterministic initial positions. Categories are ordered by
// first appearance in the snapshot, so wedge placement follows feed order.
func (rs *RadialSeeder) Seed(snap *graph.Snapshot, tick uint64) Frame {
	frame := make(Frame, len(snap.Nodes))
	if len(snap.Nodes) == 0 {
		return frame
	}

	wedge := make(map[string]int)
	size := make(map[string]int)
	for _, n := range snap.Nodes {
		if _, ok := wedge[n.Category]; !ok {
			wedge[n.Category] = len(wedge)
		}
		size[n.Category]++
	}

	center := rs.config.Center()
	categories := float64(len(wedge))
	rank := make(map[string]int, len(wedge))

	for _, n := range snap.Nodes {
		k := rank[n.Category]
		rank[n.Category] = k + 1

		theta := rs.config.WedgeRotation + WedgeCenter(wedge[n.Category], int(categories)) +
			WedgeOffset(k, size[n.Category])
		r := rs.config.BaseRadius - n.Risk*rs.config.RiskRadiusScale
		j := Jitter(n.ID, tick, rs.config.JitterPeriod)

		frame[n.ID] = Position{
			X: center.X + r*math.Cos(theta) + j,
			Y: center.Y + r*math.Sin(theta) - j,
		}
	}
	return frame
}

// WedgeCenter is the central angle of category i out of c: 2π(i+0.5)/c.
func WedgeCenter(i, c int) float64 {
	if c < 1 {
		c = 1
	}
	return 2 * math.Pi * (float64(i) + 0.5) / float64(c)
}

// WedgeOffset spreads the k-th of n same-category nodes around the wedge
// center: ((k - (n-1)/2) * π) / (8 + n).
func WedgeOffset(k, n int) float64 {
	return ((float64(k) - float64(n-1)/2) * math.Pi) / (8 + float64(n))
}

// Jitter is a small deterministic displacement derived from the FNV-1a hash
// of the node identity and the refresh tick modulo period.
func Jitter(id string, tick uint64, period int) float64 {
	if period < 1 {
		period = 1
	}
	h := fnv.New32a()
	h.Write([]byte(id))
	idHash := int(h.Sum32()%5) - 2
	phase := int(tick%uint64(period)) - period/2
	return float64(phase)*0.4 + float64(idHash)*0.6
}
