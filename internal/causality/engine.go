package causality

import (
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/causaloracle/internal/models"
)

// Engine runs build-and-predict cycles with a fixed set of options.
// It keeps no state between calls and is safe for concurrent use.
type Engine struct {
	opts Options
}

// NewEngine creates an Engine. Unset options take their defaults.
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts.withDefaults()}
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// BuildGraph builds a fresh causal graph for event from sources.
func (e *Engine) BuildGraph(sources []models.Source, event models.Event) *models.Graph {
	return BuildGraph(sources, event, e.opts)
}

// Predict derives ranked predictions from g.
func (e *Engine) Predict(event models.Event, g *models.Graph) []models.Prediction {
	return predict(event, g, e.opts.MaxPredictions)
}

// Run builds the graph and predicts in one step, returning a Run ready to store.
func (e *Engine) Run(sources []models.Source, event models.Event) *models.Run {
	g := e.BuildGraph(sources, event)
	return &models.Run{
		ID:          uuid.New().String(),
		EventID:     event.ID,
		EventTitle:  event.Title,
		SourceCount: len(sources),
		Graph:       g,
		Predictions: e.Predict(event, g),
		CreatedAt:   time.Now(),
	}
}
