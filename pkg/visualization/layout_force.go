package visualization

import (
	"math"

	"github.com/dd0wney/cluso-fraudgraph/pkg/graph"
)

// ForceRelaxer separates crowded nodes and pulls linked nodes toward a rest
// length for a fixed number of passes.
type ForceRelaxer struct {
	config LayoutConfig
}

// NewForceRelaxer creates a new relaxer; zero-valued parameters fall back to defaults.
func NewForceRelaxer(config LayoutConfig) *ForceRelaxer {
	def := DefaultLayoutConfig()
	if config.CanvasSize == 0 {
		config.CanvasSize = def.CanvasSize
	}
	if config.MinSeparation == 0 {
		config.MinSeparation = def.MinSeparation
	}
	if config.Epsilon == 0 {
		config.Epsilon = def.Epsilon
	}
	if config.RestLength == 0 {
		config.RestLength = def.RestLength
	}
	return &ForceRelaxer{config: config}
}

// Relax refines seeded positions. The result depends only on the seed frame,
// the snapshot and the configuration. Every returned position lies within
// [Margin, CanvasSize-Margin] on both axes.
func (fr *ForceRelaxer) Relax(seed Frame, snap *graph.Snapshot) Frame {
	n := len(snap.Nodes)
	if n == 0 {
		return make(Frame)
	}

	center := fr.config.Center()
	pos := make([]Position, n)
	for i, node := range snap.Nodes {
		p, ok := seed[node.ID]
		if !ok {
			p = center
		}
		pos[i] = p
	}

	lo, hi := fr.config.Margin, fr.config.CanvasSize-fr.config.Margin
	for iter := 0; iter < fr.config.Iterations; iter++ {
		fr.repel(pos)
		fr.pull(pos, snap.Links)
		clampAll(pos, lo, hi)
	}
	if fr.config.Iterations == 0 {
		clampAll(pos, lo, hi)
	}

	frame := make(Frame, n)
	for i, node := range snap.Nodes {
		frame[node.ID] = pos[i]
	}
	return frame
}

// repel pushes apart every pair closer than MinSeparation, by
// Repulsion/sqrt(d²+ε) along their separation, symmetrically.
func (fr *ForceRelaxer) repel(pos []Position) {
	minSq := fr.config.MinSeparation * fr.config.MinSeparation
	for i := 0; i < len(pos); i++ {
		for j := i + 1; j < len(pos); j++ {
			dx := pos[i].X - pos[j].X
			dy := pos[i].Y - pos[j].Y
			dist2 := dx*dx + dy*dy + fr.config.Epsilon
			if dist2 >= minSq {
				continue
			}
			if dx == 0 && dy == 0 {
				// coincident: separate along x, lower index to the right
				dx = 1
			}
			force := fr.config.Repulsion / math.Sqrt(dist2)
			dx *= force
			dy *= force
			pos[i].X += dx
			pos[i].Y += dy
			pos[j].X -= dx
			pos[j].Y -= dy
		}
	}
}

// pull moves both endpoints of each link by SpringConstant times the
// difference between their distance and RestLength.
func (fr *ForceRelaxer) pull(pos []Position, links []graph.Link) {
	for _, l := range links {
		if l.Source < 0 || l.Source >= len(pos) || l.Target < 0 || l.Target >= len(pos) {
			continue
		}
		a, b := &pos[l.Source], &pos[l.Target]
		dx := b.X - a.X
		dy := b.Y - a.Y
		dist := math.Sqrt(dx*dx+dy*dy) + fr.config.Epsilon
		delta := (dist - fr.config.RestLength) * fr.config.SpringConstant
		dx = (dx / dist) * delta
		dy = (dy / dist) * delta
		a.X += dx
		a.Y += dy
		b.X -= dx
		b.Y -= dy
	}
}
