package causality

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/causaloracle/internal/models"
)

func TestFallbackPrediction(t *testing.T) {
	got := FallbackPrediction()
	require.Len(t, got, 1)
	p := got[0]
	assert.Equal(t, "Yes", p.Outcome)
	assert.Equal(t, 0.5, p.Probability)
	assert.Equal(t, models.ConfidenceLow, p.ConfidenceLabel)
	assert.Equal(t, 0.35, p.CILower)
	assert.Equal(t, 0.65, p.CIUpper)
	assert.Equal(t, "Insufficient causal data for prediction", p.Reasoning)
	require.NoError(t, p.Validate())
}

func TestPredict_MissingGraph(t *testing.T) {
	assert.Equal(t, FallbackPrediction(), Predict(testEvent(), nil))
	assert.Equal(t, FallbackPrediction(), Predict(testEvent(), &models.Graph{}))
}

func TestPredict_GraphWithoutChains(t *testing.T) {
	sources := []models.Source{{Title: "Quiet day", Text: "Nothing of note."}}
	g := BuildGraph(sources, testEvent(), Options{})
	require.Empty(t, g.Metadata.Chains)
	assert.Equal(t, FallbackPrediction(), Predict(testEvent(), g))
}

func TestPredict_SingleChain(t *testing.T) {
	sources := []models.Source{{
		Title:          "Energy markets",
		Text:           "Rising oil prices caused higher inflation in Europe.",
		RelevanceScore: models.Score(1),
	}}
	g := BuildGraph(sources, testEvent(), Options{})
	preds := Predict(testEvent(), g)
	require.Len(t, preds, 1)

	p := preds[0]
	// Event label carries "increase": one positive node out of two.
	assert.Equal(t, "higher inflation in Europe", p.Outcome)
	assert.InDelta(t, 0.5+0.5*0.64, p.Probability, 1e-9)
	assert.InDelta(t, 0.64, p.ConfidenceScore, 1e-9)
	assert.Equal(t, models.ConfidenceMedium, p.ConfidenceLabel)
	assert.InDelta(t, p.Probability-0.15, p.CILower, 1e-9)
	assert.InDelta(t, p.Probability+0.15, p.CIUpper, 1e-9)
	assert.Equal(t, 1, p.ChainCount)
	assert.Equal(t,
		"Factor: Rising oil prices → Outcome: Will inflation increase in 2026? (chain strength: 64%)",
		p.Reasoning)
	require.NoError(t, p.Validate())
}

func chainGraph(labels map[string]string, kinds map[string]models.NodeKind, edges []models.Edge, chains ...models.CausalChain) *models.Graph {
	g := &models.Graph{}
	for _, id := range []string{"event", "f1", "f2", "o1", "o2"} {
		if _, ok := labels[id]; !ok {
			continue
		}
		g.Nodes = append(g.Nodes, models.Node{ID: id, Label: labels[id], Kind: kinds[id]})
	}
	g.Edges = edges
	g.Metadata = models.GraphMetadata{EdgeCount: len(edges), Chains: chains}
	return g
}

func TestPredict_SignalClassification(t *testing.T) {
	kinds := map[string]models.NodeKind{"event": models.NodeEvent, "f1": models.NodeFactor}
	tests := []struct {
		name   string
		factor string
		event  string
		want   float64
	}{
		{"positive factor", "strong GDP growth", "Will the index close higher?", 0.5 + 0.5*0.6},
		{"negative factor", "sharp decline in orders", "Will the index close higher?", 0.5 - 0.5*0.6},
		{"both signals cancel", "gain then loss", "Will the index close higher?", 0.5},
		{"neutral", "new regulation", "Will the index close higher?", 0.5},
		{"case insensitive", "Policy SUCCESS", "Will it return?", 0.5 + 0.5*0.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := chainGraph(
				map[string]string{"event": tt.event, "f1": tt.factor},
				kinds,
				[]models.Edge{edge("f1", "event", 0.6)},
				models.CausalChain{Path: []string{"f1", "event"}, Strength: 0.6},
			)
			preds := Predict(models.Event{Title: tt.event}, g)
			require.Len(t, preds, 1)
			assert.InDelta(t, tt.want, preds[0].Probability, 1e-9)
			assert.Equal(t, "Yes", preds[0].Outcome)
		})
	}
}

func TestPredict_ProbabilityClamped(t *testing.T) {
	g := chainGraph(
		map[string]string{"event": "growth boost", "f1": "rise and gain"},
		map[string]models.NodeKind{"event": models.NodeEvent, "f1": models.NodeFactor},
		[]models.Edge{edge("f1", "event", 1)},
		models.CausalChain{Path: []string{"f1", "event"}, Strength: 1},
	)
	preds := Predict(models.Event{Title: "growth boost"}, g)
	require.Len(t, preds, 1)
	assert.Equal(t, 0.9, preds[0].Probability)
	assert.Equal(t, 1.0, preds[0].CIUpper)
	assert.InDelta(t, 0.75, preds[0].CILower, 1e-9)
}

func TestPredict_OutcomeLabelFromPath(t *testing.T) {
	g := chainGraph(
		map[string]string{"event": "Will it pass?", "f1": "lobbying", "o1": "bill approval"},
		map[string]models.NodeKind{"event": models.NodeEvent, "f1": models.NodeFactor, "o1": models.NodeOutcome},
		[]models.Edge{edge("f1", "o1", 0.7), edge("o1", "event", 0.7)},
		models.CausalChain{Path: []string{"f1", "o1", "event"}, Strength: 0.441},
	)
	preds := Predict(models.Event{Title: "Will it pass?"}, g)
	require.Len(t, preds, 1)
	assert.Equal(t, "bill approval", preds[0].Outcome)
	assert.Equal(t, "Factor: lobbying → bill approval → Outcome: Will it pass? (chain strength: 44%)", preds[0].Reasoning)
}

func TestPredict_MissingNodesSkipped(t *testing.T) {
	g := chainGraph(
		map[string]string{"event": "Will it pass?"},
		map[string]models.NodeKind{"event": models.NodeEvent},
		nil,
		models.CausalChain{Path: []string{"ghost"}, Strength: 0.5},
		models.CausalChain{Path: []string{"ghost", "event"}, Strength: 0.5},
	)
	preds := Predict(models.Event{Title: "Will it pass?"}, g)
	require.Len(t, preds, 1)
	assert.Equal(t, "Yes", preds[0].Outcome)
	assert.Equal(t, 0.5, preds[0].Probability)
	assert.Equal(t, "Factor: Will it pass? (chain strength: 50%)", preds[0].Reasoning)
}

func TestAggregate(t *testing.T) {
	preds := []models.Prediction{
		{Outcome: "Yes", Probability: 0.8, ConfidenceScore: 0.6, Reasoning: "a", ChainCount: 1},
		{Outcome: "No", Probability: 0.3, ConfidenceScore: 0.9, Reasoning: "b", ChainCount: 1},
		{Outcome: "Yes", Probability: 0.4, ConfidenceScore: 0.2, Reasoning: "c", ChainCount: 1},
		{Outcome: "Maybe", Probability: 0.2, ConfidenceScore: 0.5, Reasoning: "d", ChainCount: 1},
	}
	out := Aggregate(preds, 2)
	require.Len(t, out, 2)

	yes := out[0]
	assert.Equal(t, "Yes", yes.Outcome)
	assert.InDelta(t, (0.8*0.6+0.4*0.2)/0.8, yes.Probability, 1e-9)
	assert.InDelta(t, 0.4, yes.ConfidenceScore, 1e-9)
	assert.Equal(t, models.ConfidenceLow, yes.ConfidenceLabel)
	assert.Equal(t, "a; c", yes.Reasoning)
	assert.Equal(t, 2, yes.ChainCount)
	assert.InDelta(t, yes.Probability-0.15, yes.CILower, 1e-9)
	assert.InDelta(t, yes.Probability+0.15, yes.CIUpper, 1e-9)

	no := out[1]
	assert.Equal(t, "No", no.Outcome)
	assert.InDelta(t, 0.3, no.Probability, 1e-9)
	assert.Equal(t, models.ConfidenceHigh, no.ConfidenceLabel)
	assert.Equal(t, 1, no.ChainCount)
}

func TestAggregate_LimitCapped(t *testing.T) {
	var preds []models.Prediction
	for i := 0; i < 4; i++ {
		preds = append(preds, models.Prediction{
			Outcome: fmt.Sprintf("outcome %d", i), Probability: 0.5, ConfidenceScore: 0.5, ChainCount: 1,
		})
	}
	assert.Len(t, Aggregate(preds, 5), PredictionLimit)
	assert.Len(t, Aggregate(preds, 0), PredictionLimit)
	assert.Len(t, Aggregate(preds, 1), 1)
}

func TestAggregate_ZeroWeightsFallBackToMean(t *testing.T) {
	out := Aggregate([]models.Prediction{
		{Outcome: "Yes", Probability: 0.2},
		{Outcome: "Yes", Probability: 0.6},
	}, 2)
	require.Len(t, out, 1)
	assert.InDelta(t, 0.4, out[0].Probability, 1e-9)
	assert.Equal(t, models.ConfidenceLow, out[0].ConfidenceLabel)
}

func TestAggregate_Clamps(t *testing.T) {
	out := Aggregate([]models.Prediction{
		{Outcome: "Yes", Probability: 0.99, ConfidenceScore: 0.8},
		{Outcome: "No", Probability: 0.01, ConfidenceScore: 0.8},
	}, 2)
	require.Len(t, out, 2)
	assert.Equal(t, 0.9, out[0].Probability)
	assert.Equal(t, 1.0, out[0].CIUpper)
	assert.Equal(t, 0.1, out[1].Probability)
	assert.Equal(t, 0.0, out[1].CILower)
	for _, p := range out {
		require.NoError(t, p.Validate())
	}
}

func TestAggregate_Empty(t *testing.T) {
	assert.Equal(t, FallbackPrediction(), Aggregate(nil, 2))
}

func TestEngine_Run(t *testing.T) {
	engine := NewEngine(Options{MaxPredictions: 1})
	assert.Equal(t, 10, engine.Options().MaxChains)

	run := engine.Run(corpus(), testEvent())
	require.NoError(t, run.Validate())
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "event-42", run.EventID)
	assert.Equal(t, 5, run.SourceCount)
	assert.Len(t, run.Predictions, 1)
	assert.NotEmpty(t, run.Graph.Metadata.Chains)

	other := engine.Run(corpus(), testEvent())
	assert.NotEqual(t, run.ID, other.ID)
	assert.Equal(t, run.Graph, other.Graph)
	assert.Equal(t, run.Predictions, other.Predictions)
}

func TestEngine_OversizedOptionsAreCapped(t *testing.T) {
	var sources []models.Source
	for i := 0; i < 12; i++ {
		sources = append(sources, models.Source{
			Title:          fmt.Sprintf("Wire %d", i),
			Text:           fmt.Sprintf("Port strike %d caused shipping delays in region %d.", i, i),
			RelevanceScore: models.Score(0.9),
		})
	}
	engine := NewEngine(Options{MaxChains: 50, MaxPredictions: 5})
	assert.Equal(t, ChainLimit, engine.Options().MaxChains)
	assert.Equal(t, PredictionLimit, engine.Options().MaxPredictions)

	run := engine.Run(sources, testEvent())
	assert.Len(t, run.Graph.Metadata.Chains, ChainLimit)
	assert.Len(t, run.Predictions, PredictionLimit)
}

func TestEngine_ConcurrentUse(t *testing.T) {
	engine := NewEngine(Options{})
	want := engine.Predict(testEvent(), engine.BuildGraph(corpus(), testEvent()))

	var wg sync.WaitGroup
	results := make([][]models.Prediction, 8)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = engine.Predict(testEvent(), engine.BuildGraph(corpus(), testEvent()))
		}()
	}
	wg.Wait()
	for _, got := range results {
		assert.Equal(t, want, got)
	}
}
