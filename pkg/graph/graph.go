// Package graph holds the entity graph model shown on the fraud dashboard:
// transactions, accounts and devices as nodes, their relations as links.
package graph

import (
	"math"
	"time"
)

// UnknownCategory is the category assigned to nodes whose feed entry has none.
const UnknownCategory = "unknown"

// Node is one entity in a snapshot. ID is stable across snapshots and keys
// every layout frame.
type Node struct {
	ID          string   `json:"id"`
	TxID        string   `json:"tx_id,omitempty"`
	Category    string   `json:"category"`
	Risk        float64  `json:"risk"`
	Amount      *float64 `json:"amount,omitempty"`
	Connections int      `json:"connections"`
}

// ExplainKey is the identity used for explanation lookups: the transaction
// id when present, the node id otherwise.
func (n Node) ExplainKey() string {
	if n.TxID != "" {
		return n.TxID
	}
	return n.ID
}

// Link joins two nodes by their index in the owning snapshot.
type Link struct {
	Source int `json:"source"`
	Target int `json:"target"`
}

// Snapshot is one complete graph state received from the feed. It is not
// modified after construction.
type Snapshot struct {
	Nodes        []Node    `json:"nodes"`
	Links        []Link    `json:"links"`
	RetrievedAt  time.Time `json:"retrieved_at"`
	DroppedLinks int       `json:"dropped_links"`
	DroppedNodes int       `json:"dropped_nodes,omitempty"`
	Placeholder  bool      `json:"placeholder,omitempty"`
}

// IndexOf returns the position of the node with the given identity, or -1.
func (s *Snapshot) IndexOf(id string) int {
	if s == nil {
		return -1
	}
	for i := range s.Nodes {
		if s.Nodes[i].ID == id {
			return i
		}
	}
	return -1
}

// Node looks a node up by identity.
func (s *Snapshot) Node(id string) (Node, bool) {
	if i := s.IndexOf(id); i >= 0 {
		return s.Nodes[i], true
	}
	return Node{}, false
}

// NormalizeRisk maps a raw feed risk into [0,1]. Values above 1 are read as
// percentages. NaN becomes 0.
func NormalizeRisk(raw float64) float64 {
	if math.IsNaN(raw) {
		return 0
	}
	if raw > 1 {
		raw = raw / 100
	}
	return math.Max(0, math.Min(1, raw))
}

// NormalizeCategory substitutes UnknownCategory for an empty label.
func NormalizeCategory(c string) string {
	if c == "" {
		return UnknownCategory
	}
	return c
}

// RawLink is a link as the feed sends it. Endpoints may be absent or
// fractional; those are treated as dangling.
type RawLink struct {
	Source *float64
	Target *float64
}

// ResolveLinks keeps the links whose endpoints both resolve to a node index
// in [0, nodeCount) and reports how many were dropped.
func ResolveLinks(raw []RawLink, nodeCount int) (links []Link, dropped int) {
	links = make([]Link, 0, len(raw))
	for _, rl := range raw {
		src, ok1 := resolveIndex(rl.Source, nodeCount)
		dst, ok2 := resolveIndex(rl.Target, nodeCount)
		if !ok1 || !ok2 {
			dropped++
			continue
		}
		links = append(links, Link{Source: src, Target: dst})
	}
	return links, dropped
}

func resolveIndex(v *float64, nodeCount int) (int, bool) {
	if v == nil {
		return 0, false
	}
	f := *v
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < 0 || f >= float64(nodeCount) {
		return 0, false
	}
	return int(f), true
}

// CountConnections sets Connections on every node from the valid links. A
// self-loop counts once.
func CountConnections(nodes []Node, links []Link) {
	for i := range nodes {
		nodes[i].Connections = 0
	}
	for _, l := range links {
		nodes[l.Source].Connections++
		if l.Target != l.Source {
			nodes[l.Target].Connections++
		}
	}
}
