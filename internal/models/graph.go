package models

import (
	"errors"
	"fmt"
	"time"
)

// NodeKind tags which variant a node is.
type NodeKind string

const (
	NodeEvent   NodeKind = "event"
	NodeSource  NodeKind = "source"
	NodeFactor  NodeKind = "factor"
	NodeOutcome NodeKind = "outcome"
)

// EdgeType is the relation an edge represents.
type EdgeType string

const (
	EdgeInforms    EdgeType = "informs"
	EdgeCauses     EdgeType = "causes"
	EdgeInfluences EdgeType = "influences"
)

// MaxLabelLength bounds node display labels.
const MaxLabelLength = 40

// Node is a vertex of the causal graph. Exactly one of Event, Source or Relation
// is set, matching Kind (factor and outcome nodes both carry Relation).
type Node struct {
	ID       string         `json:"id"`
	Label    string         `json:"label"`
	Kind     NodeKind       `json:"kind"`
	Size     float64        `json:"size"` // display hint only
	Event    *EventProps    `json:"event,omitempty"`
	Source   *SourceProps   `json:"source,omitempty"`
	Relation *RelationProps `json:"relation,omitempty"`
}

// EventProps are the attributes of the single event node.
type EventProps struct {
	EventID   string    `json:"event_id,omitempty"`
	Volume    float64   `json:"volume"`
	Liquidity float64   `json:"liquidity"`
	CloseDate time.Time `json:"close_date,omitempty"`
}

// SourceProps are the attributes of a source node.
type SourceProps struct {
	Index      int     `json:"index"`
	URL        string  `json:"url,omitempty"`
	Relevance  float64 `json:"relevance"`
	IsRecent   bool    `json:"is_recent"`
	Provenance string  `json:"provenance,omitempty"`
}

// RelationProps are the attributes of factor and outcome nodes.
type RelationProps struct {
	Text        string       `json:"text"` // full cleaned phrase; Label is truncated
	Confidence  float64      `json:"confidence"`
	Type        RelationType `json:"type"`
	Temporal    Temporal     `json:"temporal"`
	SourceIndex int          `json:"source_index"`
}

// Edge is a directed relation between two nodes of the same graph.
type Edge struct {
	From     string   `json:"from"`
	To       string   `json:"to"`
	Type     EdgeType `json:"type"`
	Strength float64  `json:"strength"`
	Weight   float64  `json:"weight"`
	Temporal Temporal `json:"temporal,omitempty"`
	Label    string   `json:"label,omitempty"`
}

// CausalChain is a path from a factor node to the event node with its strength.
type CausalChain struct {
	Path     []string `json:"path"`
	Strength float64  `json:"strength"`
}

// Start returns the factor node id the chain begins at.
func (c CausalChain) Start() string {
	if len(c.Path) == 0 {
		return ""
	}
	return c.Path[0]
}

// End returns the node id the chain terminates at (the event node).
func (c CausalChain) End() string {
	if len(c.Path) == 0 {
		return ""
	}
	return c.Path[len(c.Path)-1]
}

// GraphMetadata summarises a built graph.
type GraphMetadata struct {
	SourceCount int           `json:"source_count"`
	EdgeCount   int           `json:"edge_count"`
	Chains      []CausalChain `json:"causal_chains"`
}

// Graph is the weighted directed graph built for one prediction request.
// Nodes are kept in insertion order: the event node first, then each source
// followed by its extracted factor/outcome pairs.
type Graph struct {
	Nodes    []Node        `json:"nodes"`
	Edges    []Edge        `json:"edges"`
	Metadata GraphMetadata `json:"metadata"`
}

// NodeByID returns the node with the given id.
func (g *Graph) NodeByID(id string) (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// EventNode returns the graph's event node.
func (g *Graph) EventNode() (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].Kind == NodeEvent {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// Validate checks the structural invariants of the graph: a single event node,
// unique node ids, edges between existing nodes, strengths and weights in [0,1],
// and acyclic chains that end at the event node.
func (g *Graph) Validate() error {
	ids := make(map[string]bool, len(g.Nodes))
	events := 0
	for _, n := range g.Nodes {
		if n.ID == "" {
			return errors.New("node ID must not be empty")
		}
		if ids[n.ID] {
			return fmt.Errorf("duplicate node ID: %s", n.ID)
		}
		ids[n.ID] = true
		if n.Kind == NodeEvent {
			events++
		}
		if len([]rune(n.Label)) > MaxLabelLength {
			return fmt.Errorf("node %s label exceeds %d characters", n.ID, MaxLabelLength)
		}
	}
	if events != 1 {
		return fmt.Errorf("graph must have exactly one event node, got %d", events)
	}

	for _, e := range g.Edges {
		if !ids[e.From] || !ids[e.To] {
			return fmt.Errorf("edge %s -> %s references unknown node", e.From, e.To)
		}
		if e.Strength < 0.0 || e.Strength > 1.0 {
			return fmt.Errorf("edge %s -> %s strength must be between 0.0 and 1.0", e.From, e.To)
		}
		if e.Weight < 0.0 || e.Weight > 1.0 {
			return fmt.Errorf("edge %s -> %s weight must be between 0.0 and 1.0", e.From, e.To)
		}
	}
	if g.Metadata.EdgeCount != len(g.Edges) {
		return errors.New("metadata edge count must equal number of edges")
	}

	event, _ := g.EventNode()
	for _, c := range g.Metadata.Chains {
		if len(c.Path) < 2 {
			return errors.New("causal chain must contain at least two nodes")
		}
		if c.End() != event.ID {
			return fmt.Errorf("causal chain from %s does not end at the event node", c.Start())
		}
		if c.Strength <= 0.0 || c.Strength > 1.0 {
			return fmt.Errorf("causal chain from %s strength must be in (0, 1]", c.Start())
		}
		seen := make(map[string]bool, len(c.Path))
		for _, id := range c.Path {
			if seen[id] {
				return fmt.Errorf("causal chain from %s repeats node %s", c.Start(), id)
			}
			if !ids[id] {
				return fmt.Errorf("causal chain from %s references unknown node %s", c.Start(), id)
			}
			seen[id] = true
		}
	}
	return nil
}
