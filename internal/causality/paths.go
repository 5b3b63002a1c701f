package causality

import (
	"math"

	"github.com/rewired-gh/causaloracle/internal/models"
)

const (
	// missingEdgePenalty scores a hop with no connecting edge.
	missingEdgePenalty = 0.3
	// lengthDecay is applied once per hop beyond the first.
	lengthDecay = 0.9
)

// adjacency maps a node id to the indexes of its outgoing edges, in edge order.
type adjacency map[string][]int

func newAdjacency(edges []models.Edge) adjacency {
	adj := make(adjacency)
	for i, e := range edges {
		adj[e.From] = append(adj[e.From], i)
	}
	return adj
}

// FindPath returns the first path from start to target discovered by a depth-first
// search over outgoing edges, inclusive of both ends, or nil if target is
// unreachable. Edges are tried in slice order, so the result is the first path in
// insertion order, not necessarily the shortest or strongest. Worst case is
// O(nodes + edges) per call.
func FindPath(start, target string, edges []models.Edge) []string {
	return newAdjacency(edges).path(start, target, edges)
}

func (a adjacency) path(start, target string, edges []models.Edge) []string {
	if start == target {
		return []string{start}
	}

	visited := make(map[string]bool)
	var walk func(node string, path []string) []string
	walk = func(node string, path []string) []string {
		visited[node] = true
		path = append(path, node)
		if node == target {
			return path
		}
		for _, i := range a[node] {
			next := edges[i].To
			if visited[next] {
				continue
			}
			if found := walk(next, path); found != nil {
				return found
			}
		}
		return nil
	}

	found := walk(start, nil)
	if found == nil {
		return nil
	}
	return append([]string(nil), found...)
}

// ScorePath multiplies the strengths of the edges along path, using the first
// matching edge for each hop, and applies a 0.9 decay per hop beyond the first.
// A hop with no edge is scored 0.3.
func ScorePath(path []string, edges []models.Edge) float64 {
	strength := 1.0
	for i := 0; i+1 < len(path); i++ {
		if e, ok := findEdge(path[i], path[i+1], edges); ok {
			strength *= e.Strength
		} else {
			strength *= missingEdgePenalty
		}
	}
	if hops := len(path) - 2; hops > 0 {
		strength *= math.Pow(lengthDecay, float64(hops))
	}
	return models.Clamp(strength, 0, 1)
}

func findEdge(from, to string, edges []models.Edge) (models.Edge, bool) {
	for _, e := range edges {
		if e.From == from && e.To == to {
			return e, true
		}
	}
	return models.Edge{}, false
}
