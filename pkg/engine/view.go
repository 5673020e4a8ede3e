package engine

import (
	"time"

	"github.com/dd0wney/cluso-fraudgraph/pkg/animation"
	"github.com/dd0wney/cluso-fraudgraph/pkg/explain"
	"github.com/dd0wney/cluso-fraudgraph/pkg/graph"
	"github.com/dd0wney/cluso-fraudgraph/pkg/interaction"
	"github.com/dd0wney/cluso-fraudgraph/pkg/visualization"
)

// Broker topics.
const (
	TopicFrame       = "frame"
	TopicRefresh     = "refresh"
	TopicInteraction = "interaction"
)

// Source describes where the displayed snapshot came from.
type Source string

const (
	SourceNone        Source = "none"
	SourceLive        Source = "live"
	SourceStale       Source = "stale"
	SourcePlaceholder Source = "placeholder"
)

// NodeView is a displayed node with its current position.
type NodeView struct {
	ID          string     `json:"id"`
	TxID        string     `json:"tx_id,omitempty"`
	Category    string     `json:"category"`
	Risk        float64    `json:"risk"`
	Band        graph.Band `json:"band"`
	Amount      *float64   `json:"amount,omitempty"`
	Connections int        `json:"connections"`
	X           float64    `json:"x"`
	Y           float64    `json:"y"`
}

// Selection is the explanation panel state.
type Selection struct {
	NodeID      string               `json:"node_id,omitempty"`
	Key         string               `json:"key,omitempty"`
	Token       uint64               `json:"token"`
	Loading     bool                 `json:"loading"`
	Explanation *explain.Explanation `json:"explanation,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// View is everything a rendering surface needs for one frame.
type View struct {
	Tick         uint64       `json:"tick"`
	Source       Source       `json:"source"`
	State        string       `json:"state"`
	Progress     float64      `json:"progress"`
	Pending      bool         `json:"pending"`
	Relax        bool         `json:"relax"`
	CanvasSize   float64      `json:"canvas_size"`
	RetrievedAt  time.Time    `json:"retrieved_at"`
	DroppedLinks int          `json:"dropped_links"`
	Nodes        []NodeView   `json:"nodes"`
	Links        []graph.Link `json:"links"`
	Hovered      string       `json:"hovered,omitempty"`
	Selection    Selection    `json:"selection"`
	LastError    string       `json:"last_error,omitempty"`

	snapshot *graph.Snapshot
	frame    visualization.Frame
}

// Scene converts the view for SVG rendering.
func (v View) Scene() visualization.Scene {
	return visualization.Scene{
		Snapshot:   v.snapshot,
		Frame:      v.frame,
		Hovered:    v.Hovered,
		Selected:   v.Selection.NodeID,
		CanvasSize: v.CanvasSize,
	}
}

func buildView(d animation.Displayed, st interaction.State) View {
	v := View{
		State:    d.State.String(),
		Progress: d.Progress,
		Pending:  d.Pending,
		Nodes:    []NodeView{},
		Links:    []graph.Link{},
		Hovered:  st.Hovered,
		Selection: Selection{
			NodeID:      st.Selected,
			Key:         st.Key,
			Token:       st.Token,
			Loading:     st.Loading,
			Explanation: st.Explanation,
			Error:       st.ErrorMessage(),
		},
		snapshot: d.Snapshot,
		frame:    d.Frame,
	}
	if d.Snapshot == nil {
		return v
	}

	v.RetrievedAt = d.Snapshot.RetrievedAt
	v.DroppedLinks = d.Snapshot.DroppedLinks
	v.Nodes = make([]NodeView, 0, len(d.Snapshot.Nodes))
	for _, n := range d.Snapshot.Nodes {
		p, ok := d.Frame[n.ID]
		if !ok {
			continue
		}
		v.Nodes = append(v.Nodes, NodeView{
			ID:          n.ID,
			TxID:        n.TxID,
			Category:    n.Category,
			Risk:        n.Risk,
			Band:        graph.BandFor(n.Risk),
			Amount:      n.Amount,
			Connections: n.Connections,
			X:           p.X,
			Y:           p.Y,
		})
	}
	if len(d.Snapshot.Links) > 0 {
		v.Links = d.Snapshot.Links
	}
	return v
}
