package causality

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rewired-gh/causaloracle/internal/models"
)

func edge(from, to string, strength float64) models.Edge {
	return models.Edge{From: from, To: to, Type: models.EdgeCauses, Strength: strength, Weight: strength}
}

func TestFindPath(t *testing.T) {
	tests := []struct {
		name   string
		start  string
		target string
		edges  []models.Edge
		want   []string
	}{
		{
			name:   "start is target",
			start:  "event",
			target: "event",
			want:   []string{"event"},
		},
		{
			name:   "direct edge",
			start:  "f",
			target: "event",
			edges:  []models.Edge{edge("f", "event", 0.5)},
			want:   []string{"f", "event"},
		},
		{
			name:   "unreachable",
			start:  "f",
			target: "event",
			edges:  []models.Edge{edge("f", "o", 0.5), edge("event", "f", 0.5)},
			want:   nil,
		},
		{
			name:   "first path in edge order wins over shorter",
			start:  "a",
			target: "event",
			edges: []models.Edge{
				edge("a", "b", 0.1),
				edge("b", "event", 0.1),
				edge("a", "event", 0.9),
			},
			want: []string{"a", "b", "event"},
		},
		{
			name:   "backtracks out of dead end",
			start:  "f",
			target: "event",
			edges: []models.Edge{
				edge("f", "o", 0.8),
				edge("f", "event", 0.64),
			},
			want: []string{"f", "event"},
		},
		{
			name:   "terminates on cycles",
			start:  "a",
			target: "event",
			edges: []models.Edge{
				edge("a", "b", 0.5),
				edge("b", "a", 0.5),
				edge("b", "c", 0.5),
				edge("c", "event", 0.5),
			},
			want: []string{"a", "b", "c", "event"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindPath(tt.start, tt.target, tt.edges))
		})
	}
}

func TestFindPath_Acyclic(t *testing.T) {
	// Dense graph: every node points at every other node, event last.
	var edges []models.Edge
	const n = 12
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				edges = append(edges, edge(fmt.Sprint(i), fmt.Sprint(j), 0.5))
			}
		}
		edges = append(edges, edge(fmt.Sprint(i), "event", 0.5))
	}
	path := FindPath("0", "event", edges)
	assert.NotEmpty(t, path)
	assert.Equal(t, "event", path[len(path)-1])

	seen := map[string]bool{}
	for _, id := range path {
		assert.False(t, seen[id], "path repeats %s", id)
		seen[id] = true
	}
}

func TestScorePath(t *testing.T) {
	tests := []struct {
		name  string
		path  []string
		edges []models.Edge
		want  float64
	}{
		{
			name:  "length two has no decay",
			path:  []string{"f", "event"},
			edges: []models.Edge{edge("f", "event", 0.9)},
			want:  0.9,
		},
		{
			name:  "three nodes decay once",
			path:  []string{"f", "o", "event"},
			edges: []models.Edge{edge("f", "o", 0.8), edge("o", "event", 0.5)},
			want:  0.8 * 0.5 * 0.9,
		},
		{
			name: "four nodes decay twice",
			path: []string{"a", "b", "c", "event"},
			edges: []models.Edge{
				edge("a", "b", 1), edge("b", "c", 1), edge("c", "event", 1),
			},
			want: 0.81,
		},
		{
			name:  "missing edge is penalised",
			path:  []string{"f", "event"},
			edges: nil,
			want:  0.3,
		},
		{
			name:  "first matching edge is used",
			path:  []string{"f", "event"},
			edges: []models.Edge{edge("f", "event", 0.2), edge("f", "event", 0.9)},
			want:  0.2,
		},
		{
			name:  "single node",
			path:  []string{"event"},
			edges: nil,
			want:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ScorePath(tt.path, tt.edges), 1e-12)
		})
	}
}

func TestScorePath_ExactStrengthWithoutDecay(t *testing.T) {
	got := ScorePath([]string{"factor_0_0", "event"}, []models.Edge{edge("factor_0_0", "event", 0.9)})
	assert.Equal(t, 0.9, got)
}

func TestScorePath_Clamped(t *testing.T) {
	edges := []models.Edge{edge("f", "event", 1.7)}
	assert.Equal(t, 1.0, ScorePath([]string{"f", "event"}, edges))
}
