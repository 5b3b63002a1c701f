package causality

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/causaloracle/internal/logger"
	"github.com/rewired-gh/causaloracle/internal/models"
)

// EventNodeID is the id of the single event node in every graph.
const EventNodeID = "event"

const (
	recentBoost      = 1.2
	trustedBoost     = 1.15
	influenceDamping = 0.8
)

// BuildGraph assembles the causal graph for an event from its supporting sources.
//
// The event node comes first. Each source then contributes a source node with an
// informs edge to the event, followed by a factor and an outcome node for every
// relation extracted from its text, joined by a causes edge, with an influences
// edge from the factor to the event. Factor and outcome ids are scoped by source
// and relation index, so identical phrases from different sources stay distinct.
//
// Inputs are never modified and the result depends only on their order.
func BuildGraph(sources []models.Source, event models.Event, opts Options) *models.Graph {
	opts = opts.withDefaults()
	trusted := trustedSet(opts.TrustedSources)
	extracted := extractAll(sources, opts.Workers)

	g := &models.Graph{
		Nodes: []models.Node{eventNode(event)},
	}
	present := map[string]bool{EventNodeID: true}
	addNode := func(n models.Node) {
		if present[n.ID] {
			return
		}
		present[n.ID] = true
		g.Nodes = append(g.Nodes, n)
	}

	for i := range sources {
		src := &sources[i]
		sourceID := fmt.Sprintf("source_%d", i)
		relevance := src.Relevance()

		addNode(models.Node{
			ID:    sourceID,
			Label: sourceLabel(src.Title, i),
			Kind:  models.NodeSource,
			Size:  10 + 20*relevance,
			Source: &models.SourceProps{
				Index:      i,
				URL:        src.URL,
				Relevance:  relevance,
				IsRecent:   src.IsRecent,
				Provenance: src.Provenance,
			},
		})
		g.Edges = append(g.Edges, models.Edge{
			From:     sourceID,
			To:       EventNodeID,
			Type:     models.EdgeInforms,
			Strength: relevance,
			Weight:   informsWeight(src, trusted),
			Label:    src.Provenance,
		})

		for j, rel := range extracted[i] {
			factorID := fmt.Sprintf("factor_%d_%d", i, j)
			outcomeID := fmt.Sprintf("outcome_%d_%d", i, j)
			confidence := models.Clamp(rel.Confidence, 0, 1)

			addNode(relationNode(factorID, models.NodeFactor, rel.Cause, rel, i))
			addNode(relationNode(outcomeID, models.NodeOutcome, rel.Effect, rel, i))

			g.Edges = append(g.Edges,
				models.Edge{
					From:     factorID,
					To:       outcomeID,
					Type:     models.EdgeCauses,
					Strength: confidence,
					Weight:   confidence,
					Temporal: rel.Temporal,
					Label:    string(rel.Type),
				},
				models.Edge{
					From:     factorID,
					To:       EventNodeID,
					Type:     models.EdgeInfluences,
					Strength: confidence * influenceDamping,
					Weight:   confidence * influenceDamping,
					Temporal: rel.Temporal,
				},
			)
		}
	}

	g.Metadata = models.GraphMetadata{
		SourceCount: len(sources),
		EdgeCount:   len(g.Edges),
		Chains:      rankChains(g, opts.MaxChains),
	}

	logger.Debug("BuildGraph: event=%q sources=%d nodes=%d edges=%d chains=%d",
		event.Title, len(sources), len(g.Nodes), len(g.Edges), len(g.Metadata.Chains))
	return g
}

// extractAll runs Extract for every source, concurrently when workers > 1.
// Results are indexed by source so assembly order never depends on scheduling.
func extractAll(sources []models.Source, workers int) [][]models.CausalRelation {
	out := make([][]models.CausalRelation, len(sources))
	if workers <= 1 || len(sources) <= 1 {
		for i := range sources {
			out[i] = Extract(sources[i].Text, sources[i])
		}
		return out
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range sources {
		i := i
		g.Go(func() error {
			out[i] = Extract(sources[i].Text, sources[i])
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// rankChains finds a path from every factor node to the event node and keeps the
// strongest limit chains. Ties keep node insertion order.
func rankChains(g *models.Graph, limit int) []models.CausalChain {
	adj := newAdjacency(g.Edges)
	var chains []models.CausalChain
	for _, n := range g.Nodes {
		if n.Kind != models.NodeFactor {
			continue
		}
		path := adj.path(n.ID, EventNodeID, g.Edges)
		if len(path) < 2 {
			continue
		}
		strength := ScorePath(path, g.Edges)
		if strength <= 0 {
			continue
		}
		chains = append(chains, models.CausalChain{Path: path, Strength: strength})
	}

	sort.SliceStable(chains, func(i, j int) bool {
		return chains[i].Strength > chains[j].Strength
	})
	if len(chains) > limit {
		chains = chains[:limit]
	}
	return chains
}

// informsWeight boosts a source's relevance for recency and trusted provenance.
func informsWeight(src *models.Source, trusted map[string]bool) float64 {
	w := src.Relevance()
	if src.IsRecent {
		w *= recentBoost
	}
	if trusted[strings.ToLower(strings.TrimSpace(src.Provenance))] {
		w *= trustedBoost
	}
	return models.Clamp(w, 0, 1)
}

func eventNode(event models.Event) models.Node {
	return models.Node{
		ID:    EventNodeID,
		Label: truncate(event.Title, models.MaxLabelLength),
		Kind:  models.NodeEvent,
		Size:  30,
		Event: &models.EventProps{
			EventID:   event.ID,
			Volume:    event.Volume,
			Liquidity: event.Liquidity,
			CloseDate: event.CloseDate,
		},
	}
}

func sourceLabel(title string, index int) string {
	if label := truncate(strings.TrimSpace(title), models.MaxLabelLength); label != "" {
		return label
	}
	return fmt.Sprintf("Source %d", index+1)
}

func relationNode(id string, kind models.NodeKind, text string, rel models.CausalRelation, sourceIndex int) models.Node {
	confidence := models.Clamp(rel.Confidence, 0, 1)
	return models.Node{
		ID:    id,
		Label: truncate(text, models.MaxLabelLength),
		Kind:  kind,
		Size:  8 + 12*confidence,
		Relation: &models.RelationProps{
			Text:        text,
			Confidence:  confidence,
			Type:        rel.Type,
			Temporal:    rel.Temporal,
			SourceIndex: sourceIndex,
		},
	}
}
