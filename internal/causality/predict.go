package causality

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rewired-gh/causaloracle/internal/logger"
	"github.com/rewired-gh/causaloracle/internal/models"
)

const (
	minProbability   = 0.1
	maxProbability   = 0.9
	intervalHalfWide = 0.15
	defaultOutcome   = "Yes"
)

var (
	positiveSignals = []string{"increase", "rise", "growth", "success", "positive", "gain", "improve", "boost"}
	negativeSignals = []string{"decrease", "fall", "decline", "failure", "negative", "loss", "worsen", "drop"}
)

// FallbackPrediction is returned when a graph has nothing to predict from: a single
// neutral "Yes" at 50% with low confidence.
func FallbackPrediction() []models.Prediction {
	return []models.Prediction{{
		Outcome:         defaultOutcome,
		Probability:     0.5,
		ConfidenceLabel: models.ConfidenceLow,
		ConfidenceScore: 0,
		CILower:         0.35,
		CIUpper:         0.65,
		Reasoning:       "Insufficient causal data for prediction",
		ChainCount:      0,
	}}
}

// Predict derives outcome probabilities from the causal chains of g, returning at
// most two predictions ranked by probability. A nil or empty graph, or one without
// chains, yields FallbackPrediction.
func Predict(event models.Event, g *models.Graph) []models.Prediction {
	return predict(event, g, DefaultOptions().MaxPredictions)
}

func predict(event models.Event, g *models.Graph, limit int) []models.Prediction {
	if g == nil || len(g.Nodes) == 0 {
		logger.Debug("Predict: no graph for event %q, using fallback", event.Title)
		return FallbackPrediction()
	}

	nodes := make(map[string]*models.Node, len(g.Nodes))
	for i := range g.Nodes {
		nodes[g.Nodes[i].ID] = &g.Nodes[i]
	}

	adj := newAdjacency(g.Edges)
	perChain := make([]models.Prediction, 0, len(g.Metadata.Chains))
	for _, chain := range g.Metadata.Chains {
		if p, ok := chainPrediction(chain, nodes, adj, g.Edges); ok {
			perChain = append(perChain, p)
		}
	}

	logger.Debug("Predict: event=%q chains=%d", event.Title, len(perChain))
	return Aggregate(perChain, limit)
}

// chainPrediction scores a single chain. Nodes missing from the graph are skipped.
func chainPrediction(chain models.CausalChain, nodes map[string]*models.Node, adj adjacency, edges []models.Edge) (models.Prediction, bool) {
	path := make([]*models.Node, 0, len(chain.Path))
	for _, id := range chain.Path {
		if n, ok := nodes[id]; ok {
			path = append(path, n)
		}
	}
	if len(path) == 0 {
		return models.Prediction{}, false
	}

	var positive, negative int
	for _, n := range path {
		label := strings.ToLower(n.Label)
		if containsAny(label, positiveSignals) {
			positive++
		}
		if containsAny(label, negativeSignals) {
			negative++
		}
	}

	signalDiff := float64(positive-negative) / float64(max(len(path), 1))
	probability := models.Clamp(0.5+signalDiff*chain.Strength, minProbability, maxProbability)
	strength := models.Clamp(chain.Strength, 0, 1)
	lower, upper := interval(probability)

	return models.Prediction{
		Outcome:         outcomeLabel(path, nodes, adj, edges),
		Probability:     probability,
		ConfidenceLabel: models.LabelFor(strength),
		ConfidenceScore: strength,
		CILower:         lower,
		CIUpper:         upper,
		Reasoning:       chainReasoning(path, strength),
		ChainCount:      1,
	}, true
}

// outcomeLabel picks the last outcome node on the path, else the first outcome node
// one edge away from any path node, else "Yes".
func outcomeLabel(path []*models.Node, nodes map[string]*models.Node, adj adjacency, edges []models.Edge) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i].Kind == models.NodeOutcome {
			return path[i].Label
		}
	}
	for _, n := range path {
		for _, ei := range adj[n.ID] {
			if next, ok := nodes[edges[ei].To]; ok && next.Kind == models.NodeOutcome {
				return next.Label
			}
		}
	}
	return defaultOutcome
}

func chainReasoning(path []*models.Node, strength float64) string {
	parts := make([]string, len(path))
	for i, n := range path {
		switch {
		case i == 0:
			parts[i] = "Factor: " + n.Label
		case i == len(path)-1:
			parts[i] = "→ Outcome: " + n.Label
		default:
			parts[i] = "→ " + n.Label
		}
	}
	return fmt.Sprintf("%s (chain strength: %.0f%%)", strings.Join(parts, " "), strength*100)
}

// Aggregate merges chain-level predictions that name the same outcome. Each group's
// probability is the strength-weighted mean of its members and its confidence the
// plain mean. Groups are ranked by probability and at most limit (capped at
// PredictionLimit) are returned, each with a ±0.15 interval. No predictions yields
// FallbackPrediction.
func Aggregate(preds []models.Prediction, limit int) []models.Prediction {
	if len(preds) == 0 {
		return FallbackPrediction()
	}

	type group struct {
		outcome    string
		weighted   float64
		weights    float64
		plain      float64
		members    int
		chains     int
		reasonings []string
	}
	byOutcome := make(map[string]*group)
	var order []*group
	for _, p := range preds {
		g, ok := byOutcome[p.Outcome]
		if !ok {
			g = &group{outcome: p.Outcome}
			byOutcome[p.Outcome] = g
			order = append(order, g)
		}
		w := models.Clamp(p.ConfidenceScore, 0, 1)
		g.weighted += p.Probability * w
		g.weights += w
		g.plain += p.Probability
		g.members++
		g.chains += max(p.ChainCount, 1)
		g.reasonings = append(g.reasonings, p.Reasoning)
	}

	out := make([]models.Prediction, 0, len(order))
	for _, g := range order {
		var probability float64
		if g.weights > 0 {
			probability = g.weighted / g.weights
		} else {
			probability = g.plain / float64(g.members)
		}
		probability = models.Clamp(probability, minProbability, maxProbability)
		confidence := g.weights / float64(g.members)
		lower, upper := interval(probability)

		out = append(out, models.Prediction{
			Outcome:         g.outcome,
			Probability:     probability,
			ConfidenceLabel: models.LabelFor(confidence),
			ConfidenceScore: confidence,
			CILower:         lower,
			CIUpper:         upper,
			Reasoning:       strings.Join(g.reasonings, "; "),
			ChainCount:      g.chains,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Probability > out[j].Probability
	})
	if limit <= 0 || limit > PredictionLimit {
		limit = PredictionLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func interval(p float64) (lower, upper float64) {
	return models.Clamp(p-intervalHalfWide, 0, 1), models.Clamp(p+intervalHalfWide, 0, 1)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
