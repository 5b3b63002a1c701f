// Package models defines the plain data records shared by the causaloracle packages:
// prediction-market events, the source documents used as evidence, the causal graph
// built from them, and the predictions derived from that graph.
// All records include built-in validation so collaborators can reject bad input early.
//
// Terminology (matching Polymarket's own naming):
//   - Event: a Polymarket event page, which groups one or more related markets.
//   - Market: a single question within an event, with its own outcomes and prices.
package models

import (
	"errors"
	"time"
)

// Event is the prediction-market question being forecast. Only Title is required
// by the causality engine; the remaining fields come from the market data source.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url,omitempty"`
	Volume      float64   `json:"volume,omitempty"`     // Total volume in USD
	Volume24hr  float64   `json:"volume_24hr,omitempty"` // 24-hour volume in USD
	Liquidity   float64   `json:"liquidity,omitempty"`  // Current liquidity in USD
	StartDate   time.Time `json:"start_date,omitempty"`
	CloseDate   time.Time `json:"close_date,omitempty"`
	Active      bool      `json:"active"`
	Closed      bool      `json:"closed"`
	Markets     []Market  `json:"markets,omitempty"`
}

// Market is a single question within an event.
type Market struct {
	ID       string    `json:"id"`
	Question string    `json:"question"`
	Outcomes []Outcome `json:"outcomes,omitempty"`
}

// Outcome is one labelled outcome of a market with its current price (0–1).
type Outcome struct {
	Label string  `json:"label"`
	Price float64 `json:"price"`
}

// Validate checks that all event fields are valid.
func (e *Event) Validate() error {
	if e.Title == "" {
		return errors.New("event title must not be empty")
	}
	if e.Volume < 0 {
		return errors.New("volume must not be negative")
	}
	if e.Volume24hr < 0 {
		return errors.New("volume 24hr must not be negative")
	}
	if e.Liquidity < 0 {
		return errors.New("liquidity must not be negative")
	}
	if !e.StartDate.IsZero() && !e.CloseDate.IsZero() && e.CloseDate.Before(e.StartDate) {
		return errors.New("close date must not be before start date")
	}
	for _, m := range e.Markets {
		for _, o := range m.Outcomes {
			if o.Price < 0.0 || o.Price > 1.0 {
				return errors.New("outcome price must be between 0.0 and 1.0")
			}
		}
	}
	return nil
}

// LeadingOutcome returns the highest-priced outcome across all markets.
// ok is false when no market carries outcome prices.
func (e *Event) LeadingOutcome() (outcome Outcome, ok bool) {
	for _, m := range e.Markets {
		for _, o := range m.Outcomes {
			if !ok || o.Price > outcome.Price {
				outcome = o
				ok = true
			}
		}
	}
	return outcome, ok
}
