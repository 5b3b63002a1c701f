package models

import (
	"errors"
	"time"
)

// ConfidenceLabel is the qualitative confidence attached to a prediction.
type ConfidenceLabel string

const (
	ConfidenceHigh   ConfidenceLabel = "High"
	ConfidenceMedium ConfidenceLabel = "Medium"
	ConfidenceLow    ConfidenceLabel = "Low"
)

// LabelFor maps a confidence score to its label: >0.7 High, >0.5 Medium, else Low.
func LabelFor(score float64) ConfidenceLabel {
	switch {
	case score > 0.7:
		return ConfidenceHigh
	case score > 0.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Prediction is a probability forecast for one outcome of an event.
// Both the confidence label and the scalar it was derived from are carried.
type Prediction struct {
	Outcome         string          `json:"outcome"`
	Probability     float64         `json:"probability"`
	ConfidenceLabel ConfidenceLabel `json:"confidence"`
	ConfidenceScore float64         `json:"confidence_score"`
	CILower         float64         `json:"ci_lower"`
	CIUpper         float64         `json:"ci_upper"`
	Reasoning       string          `json:"reasoning"`
	ChainCount      int             `json:"causal_chains"`
}

// Validate checks that the prediction fields are valid.
func (p *Prediction) Validate() error {
	if p.Outcome == "" {
		return errors.New("prediction outcome must not be empty")
	}
	if p.Probability < 0.0 || p.Probability > 1.0 {
		return errors.New("probability must be between 0.0 and 1.0")
	}
	if p.ConfidenceScore < 0.0 || p.ConfidenceScore > 1.0 {
		return errors.New("confidence score must be between 0.0 and 1.0")
	}
	switch p.ConfidenceLabel {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
	default:
		return errors.New("confidence must be one of: High, Medium, Low")
	}
	if p.CILower < 0.0 || p.CIUpper > 1.0 {
		return errors.New("confidence interval must lie within [0.0, 1.0]")
	}
	if p.CILower > p.Probability || p.Probability > p.CIUpper {
		return errors.New("probability must lie within its confidence interval")
	}
	if p.ChainCount < 0 {
		return errors.New("causal chain count must not be negative")
	}
	return nil
}

// Run is one build-and-predict cycle for an event, as stored and reported.
type Run struct {
	ID          string       `json:"id"`
	EventID     string       `json:"event_id"`
	EventTitle  string       `json:"event_title"`
	SourceCount int          `json:"source_count"`
	Graph       *Graph       `json:"graph,omitempty"`
	Predictions []Prediction `json:"predictions"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Top returns the highest-ranked prediction of the run.
func (r *Run) Top() (Prediction, bool) {
	if len(r.Predictions) == 0 {
		return Prediction{}, false
	}
	return r.Predictions[0], true
}

// Find returns the prediction for the given outcome label.
func (r *Run) Find(outcome string) (Prediction, bool) {
	for _, p := range r.Predictions {
		if p.Outcome == outcome {
			return p, true
		}
	}
	return Prediction{}, false
}

// Validate checks that the run fields are valid.
func (r *Run) Validate() error {
	if r.ID == "" {
		return errors.New("run ID must not be empty")
	}
	if r.EventTitle == "" {
		return errors.New("event title must not be empty")
	}
	if len(r.Predictions) == 0 {
		return errors.New("run must contain at least one prediction")
	}
	for i := range r.Predictions {
		if err := r.Predictions[i].Validate(); err != nil {
			return err
		}
	}
	if r.Graph != nil {
		if err := r.Graph.Validate(); err != nil {
			return err
		}
	}
	if r.CreatedAt.IsZero() {
		return errors.New("created at must be set")
	}
	if r.CreatedAt.After(time.Now()) {
		return errors.New("created at must not be in the future")
	}
	return nil
}
