package visualization

import (
	"fmt"
	"io"
	"math"

	svg "github.com/ajstarks/svgo"

	"github.com/dd0wney/cluso-fraudgraph/pkg/graph"
)

// svgScale converts canvas units to SVG user units. svgo takes integer
// coordinates, so the viewBox is scaled up to keep sub-unit motion visible.
const svgScale = 10

const (
	colorBackdrop = "#fafafa"
	colorLink     = "#dddddd"
	colorStroke   = "#ffffff"
	colorHover    = "#1f2933"
	colorSelected = "#2563eb"
)

// BandColor is the fill used for a risk band.
func BandColor(b graph.Band) string {
	switch b {
	case graph.BandHigh:
		return "#ff4d4f"
	case graph.BandMedium:
		return "#faad14"
	default:
		return "#52c41a"
	}
}

// BandRadius is the node radius, in canvas units, for a risk band.
func BandRadius(b graph.Band) float64 {
	switch b {
	case graph.BandHigh:
		return 9
	case graph.BandMedium:
		return 7
	default:
		return 5
	}
}

// Scene is everything needed to draw one frame.
type Scene struct {
	Snapshot   *graph.Snapshot
	Frame      Frame
	Hovered    string
	Selected   string
	CanvasSize float64
}

// RenderSVG draws links beneath nodes. Nodes without a position in the
// frame are skipped.
func RenderSVG(w io.Writer, scene Scene) error {
	if scene.CanvasSize <= 0 {
		scene.CanvasSize = DefaultLayoutConfig().CanvasSize
	}
	size := units(scene.CanvasSize)

	canvas := svg.New(w)
	canvas.Startview(int(scene.CanvasSize), int(scene.CanvasSize), 0, 0, size, size)
	canvas.Rect(0, 0, size, size, "fill:"+colorBackdrop)

	if scene.Snapshot == nil {
		canvas.End()
		return nil
	}
	nodes := scene.Snapshot.Nodes

	canvas.Gid("links")
	for _, l := range scene.Snapshot.Links {
		if l.Source < 0 || l.Source >= len(nodes) || l.Target < 0 || l.Target >= len(nodes) {
			continue
		}
		a, okA := scene.Frame[nodes[l.Source].ID]
		b, okB := scene.Frame[nodes[l.Target].ID]
		if !okA || !okB {
			continue
		}
		canvas.Line(units(a.X), units(a.Y), units(b.X), units(b.Y),
			fmt.Sprintf("stroke:%s;stroke-width:%d", colorLink, svgScale))
	}
	canvas.Gend()

	canvas.Gid("nodes")
	for _, n := range nodes {
		p, ok := scene.Frame[n.ID]
		if !ok {
			continue
		}
		band := graph.BandFor(n.Risk)
		r := BandRadius(band)
		stroke, width := colorStroke, 2
		switch n.ID {
		case scene.Selected:
			stroke, width = colorSelected, 3
			r *= 1.5
		case scene.Hovered:
			stroke, width = colorHover, 3
			r *= 1.5
		}
		canvas.Circle(units(p.X), units(p.Y), units(r),
			fmt.Sprintf(`id="node-%s" data-band="%s" style="fill:%s;stroke:%s;stroke-width:%d"`,
				svgAttr(n.ID), band, BandColor(band), stroke, width*svgScale))
	}
	canvas.Gend()

	canvas.End()
	return nil
}

func units(v float64) int {
	return int(math.Round(v * svgScale))
}

// svgAttr escapes a value for use inside a double-quoted attribute.
func svgAttr(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '"', '<', '>', '&', '\'':
			out = append(out, []rune(fmt.Sprintf("&#%d;", r))...)
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
