package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dd0wney/cluso-fraudgraph/pkg/engine"
	"github.com/dd0wney/cluso-fraudgraph/pkg/explain"
	"github.com/dd0wney/cluso-fraudgraph/pkg/graph"
	"github.com/dd0wney/cluso-fraudgraph/pkg/visualization"
)

const (
	glyphNode     = '●'
	glyphHovered  = '◉'
	glyphSelected = '◎'
	glyphLink     = '·'

	topAttributions = 5
	barWidth        = 20
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF00FF"))

	canvasStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FFFF"))

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FFFF00")).
			Padding(0, 1).
			MarginLeft(1)

	linkStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))
	hoverStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#40a9ff")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
	positiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4d4f"))
	negativeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#52c41a"))
)

var bandStyles = map[graph.Band]lipgloss.Style{
	graph.BandHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color(visualization.BandColor(graph.BandHigh))),
	graph.BandMedium: lipgloss.NewStyle().Foreground(lipgloss.Color(visualization.BandColor(graph.BandMedium))),
	graph.BandLow:    lipgloss.NewStyle().Foreground(lipgloss.Color(visualization.BandColor(graph.BandLow))),
}

type cell struct {
	glyph rune
	style *lipgloss.Style
}

// grid is a character raster of the canvas.
type grid struct {
	width, height int
	cells         [][]cell
}

func newGrid(width, height int) *grid {
	g := &grid{width: width, height: height, cells: make([][]cell, height)}
	for y := range g.cells {
		g.cells[y] = make([]cell, width)
	}
	return g
}

func (g *grid) set(x, y int, glyph rune, style *lipgloss.Style) {
	if x < 0 || y < 0 || x >= g.width || y >= g.height {
		return
	}
	g.cells[y][x] = cell{glyph: glyph, style: style}
}

func (g *grid) at(x, y int) rune {
	return g.cells[y][x].glyph
}

// line draws a Bresenham line without overwriting existing glyphs.
func (g *grid) line(x0, y0, x1, y1 int) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		if g.cells[y0][x0].glyph == 0 {
			g.set(x0, y0, glyphLink, &linkStyle)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		if e2 := 2 * e; e2 >= dy {
			e += dy
			x0 += sx
		} else {
			e += dx
			y0 += sy
		}
	}
}

func (g *grid) String() string {
	var b strings.Builder
	for y, row := range g.cells {
		for _, c := range row {
			switch {
			case c.glyph == 0:
				b.WriteByte(' ')
			case c.style != nil:
				b.WriteString(c.style.Render(string(c.glyph)))
			default:
				b.WriteRune(c.glyph)
			}
		}
		if y < len(g.cells)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// rasterize draws links then nodes of v onto a width x height grid.
func rasterize(v engine.View, width, height int) *grid {
	g := newGrid(width, height)
	if width <= 0 || height <= 0 {
		return g
	}

	cellOf := func(n engine.NodeView) (int, int) {
		return visualization.ScaleTo(visualization.Position{X: n.X, Y: n.Y}, v.CanvasSize, width, height)
	}

	byIndex := make(map[int]engine.NodeView, len(v.Nodes))
	for i, n := range v.Nodes {
		byIndex[i] = n
	}
	for _, l := range v.Links {
		a, okA := byIndex[l.Source]
		b, okB := byIndex[l.Target]
		if !okA || !okB {
			continue
		}
		ax, ay := cellOf(a)
		bx, by := cellOf(b)
		g.line(ax, ay, bx, by)
	}

	for _, n := range v.Nodes {
		x, y := cellOf(n)
		style := bandStyles[n.Band]
		switch n.ID {
		case v.Selection.NodeID:
			g.set(x, y, glyphSelected, &selectedStyle)
		case v.Hovered:
			g.set(x, y, glyphHovered, &hoverStyle)
		default:
			g.set(x, y, glyphNode, &style)
		}
	}
	return g
}

func findNode(v engine.View, id string) (engine.NodeView, bool) {
	for _, n := range v.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return engine.NodeView{}, false
}

func describeNode(n engine.NodeView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", titleStyle.Render(n.ID), dimStyle.Render(n.Category))
	fmt.Fprintf(&b, "risk %s  links %d", bandStyles[n.Band].Render(fmt.Sprintf("%.2f", n.Risk)), n.Connections)
	if n.Amount != nil {
		fmt.Fprintf(&b, "  amount %.2f", *n.Amount)
	}
	if n.TxID != "" {
		fmt.Fprintf(&b, "\ntx %s", n.TxID)
	}
	return b.String()
}

// attributionBar renders weight relative to the largest magnitude.
func attributionBar(a explain.Attribution, maxAbs float64) string {
	n := 0
	if maxAbs > 0 {
		n = int(float64(barWidth) * abs64(a.Weight) / maxAbs)
	}
	if n == 0 && a.Weight != 0 {
		n = 1
	}
	bar := strings.Repeat("█", n)
	if a.Weight < 0 {
		return negativeStyle.Render(bar)
	}
	return positiveStyle.Render(bar)
}

func abs64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// renderPanel draws the hover and explanation panel.
func renderPanel(v engine.View, spin string) string {
	var b strings.Builder

	if n, ok := findNode(v, v.Hovered); ok {
		b.WriteString(describeNode(n))
		b.WriteString("\n\n")
	}

	sel := v.Selection
	switch {
	case sel.NodeID == "":
		b.WriteString(dimStyle.Render("enter selects the hovered node"))
	case sel.Loading:
		fmt.Fprintf(&b, "%s explaining %s", spin, sel.Key)
	case sel.Error != "":
		fmt.Fprintf(&b, "%s\n%s", titleStyle.Render(sel.NodeID), errorStyle.Render(sel.Error))
	case sel.Explanation != nil:
		e := sel.Explanation
		fmt.Fprintf(&b, "%s  key %s\n", titleStyle.Render(sel.NodeID), sel.Key)
		if e.Score != nil {
			fmt.Fprintf(&b, "score %.3f\n", *e.Score)
		}
		attrs := e.TopAttributions(topAttributions)
		if len(attrs) == 0 {
			b.WriteString(dimStyle.Render("no feature attributions"))
		}
		maxAbs := 0.0
		if len(attrs) > 0 {
			maxAbs = abs64(attrs[0].Weight)
		}
		for _, a := range attrs {
			fmt.Fprintf(&b, "\n%-18s %+.3f %s", truncate(a.Feature, 18), a.Weight, attributionBar(a, maxAbs))
		}
	}
	return panelStyle.Render(b.String())
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// statusLine summarises the view source and animation.
func statusLine(v engine.View) string {
	parts := []string{
		fmt.Sprintf("source %s", v.Source),
		fmt.Sprintf("%d nodes", len(v.Nodes)),
		v.State,
	}
	if v.State == "animating" {
		parts[2] = fmt.Sprintf("animating %3.0f%%", v.Progress*100)
	}
	if v.Relax {
		parts = append(parts, "force on")
	} else {
		parts = append(parts, "force off")
	}
	line := dimStyle.Render(strings.Join(parts, " • "))
	if v.LastError != "" {
		line += "  " + errorStyle.Render(truncate(v.LastError, 60))
	}
	return line
}
