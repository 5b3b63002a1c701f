package models

import (
	"errors"
	"math"
	"time"
)

// Shift is a significant move of a predicted probability between two runs of the
// same event.
type Shift struct {
	ID             string    `json:"id"`
	EventID        string    `json:"event_id"`
	EventTitle     string    `json:"event_title"`
	Outcome        string    `json:"outcome"`
	Magnitude      float64   `json:"magnitude"`
	Direction      string    `json:"direction"` // "increase" or "decrease"
	OldProbability float64   `json:"old_probability"`
	NewProbability float64   `json:"new_probability"`
	Divergence     float64   `json:"divergence"` // KL(new || old) in nats
	PreviousRunID  string    `json:"previous_run_id"`
	RunID          string    `json:"run_id"`
	DetectedAt     time.Time `json:"detected_at"`
}

// Validate checks that all shift fields are valid.
func (s *Shift) Validate() error {
	if s.ID == "" {
		return errors.New("shift ID must not be empty")
	}
	if s.EventID == "" {
		return errors.New("event ID must not be empty")
	}
	if s.Outcome == "" {
		return errors.New("outcome must not be empty")
	}
	if s.Magnitude < 0.0 || s.Magnitude > 1.0 {
		return errors.New("magnitude must be between 0.0 and 1.0")
	}

	// Verify magnitude equals absolute difference
	expectedMagnitude := math.Abs(s.NewProbability - s.OldProbability)
	if math.Abs(s.Magnitude-expectedMagnitude) > 0.001 {
		return errors.New("magnitude must equal |new_probability - old_probability|")
	}

	if s.Direction != "increase" && s.Direction != "decrease" {
		return errors.New("direction must be 'increase' or 'decrease'")
	}
	if s.OldProbability < 0.0 || s.OldProbability > 1.0 {
		return errors.New("old probability must be between 0.0 and 1.0")
	}
	if s.NewProbability < 0.0 || s.NewProbability > 1.0 {
		return errors.New("new probability must be between 0.0 and 1.0")
	}
	if s.Divergence < 0 {
		return errors.New("divergence must not be negative")
	}
	if s.DetectedAt.After(time.Now()) {
		return errors.New("detected at must not be in the future")
	}
	return nil
}
