package graph

import (
	"strconv"
	"time"
)

// PlaceholderSize is the number of nodes in the placeholder graph.
const PlaceholderSize = 10

// Placeholder returns the fixed graph shown when the feed has never
// delivered a snapshot: two chains of five nodes with rising risk.
func Placeholder(at time.Time) *Snapshot {
	nodes := make([]Node, PlaceholderSize)
	for i := range nodes {
		nodes[i] = Node{
			ID:       "placeholder-" + strconv.Itoa(i),
			Category: UnknownCategory,
			Risk:     float64(i) / 10,
		}
	}

	links := make([]Link, 0, PlaceholderSize-2)
	for _, start := range []int{0, PlaceholderSize / 2} {
		for i := start; i < start+PlaceholderSize/2-1; i++ {
			links = append(links, Link{Source: i, Target: i + 1})
		}
	}
	CountConnections(nodes, links)

	return &Snapshot{
		Nodes:       nodes,
		Links:       links,
		RetrievedAt: at,
		Placeholder: true,
	}
}
