// Package monitor detects prediction shifts between consecutive runs of the same event.
//
// A shift is reported when the top outcome's probability moves by at least the
// configured threshold relative to the previous run. Each shift carries the
// information gain of the update:
//
//	divergence = KL(p_new || p_old)
//
// Notifications are deduplicated with a cooldown: a shift in the same direction
// as the last one sent for that outcome is suppressed unless the prediction is
// entering the confident zone for the first time.
package monitor

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/causaloracle/internal/logger"
	"github.com/rewired-gh/causaloracle/internal/models"
	"github.com/rewired-gh/causaloracle/internal/storage"
)

// probEpsilon clamps probabilities away from 0 and 1 to prevent ln(0) in KL divergence.
const probEpsilon = 1e-7

// notifiedRecord tracks a previously sent notification for cooldown deduplication.
type notifiedRecord struct {
	Direction string
	NewProb   float64
	SentAt    time.Time
}

// Monitor stores runs and detects shifts between them. It is not safe for
// concurrent use.
type Monitor struct {
	storage   *storage.Storage
	threshold float64
	notified  map[string]notifiedRecord // key = event ID + outcome
	now       func() time.Time
}

// New creates a Monitor reporting shifts of at least threshold.
func New(s *storage.Storage, threshold float64) *Monitor {
	return &Monitor{
		storage:   s,
		threshold: threshold,
		notified:  make(map[string]notifiedRecord),
		now:       time.Now,
	}
}

// Process stores run and compares it with the previous run of the same event.
// It returns the detected shift, or nil when there is no previous run or the move
// is below the threshold.
func (m *Monitor) Process(run *models.Run) (*models.Shift, error) {
	prev, err := m.storage.LatestRun(run.EventID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to load previous run: %w", err)
	}

	if err := m.storage.SaveRun(run); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	if prev == nil {
		logger.Debug("Process: first run %s for event %s", run.ID, run.EventID)
		return nil, nil
	}

	shift := DetectShift(prev, run, m.threshold)
	if shift == nil {
		return nil, nil
	}
	if err := m.storage.SaveShift(shift); err != nil {
		return nil, fmt.Errorf("failed to save shift: %w", err)
	}
	logger.Info("Shift detected for %q: %s %.1f%% → %.1f%%",
		shift.EventTitle, shift.Outcome, shift.OldProbability*100, shift.NewProbability*100)
	return shift, nil
}

// DetectShift compares the top prediction of curr with the prediction for the
// same outcome in prev, or with prev's top prediction when the outcome is new.
// It returns nil when either run has no predictions or |Δp| < threshold.
func DetectShift(prev, curr *models.Run, threshold float64) *models.Shift {
	if prev == nil || curr == nil {
		return nil
	}
	top, ok := curr.Top()
	if !ok {
		return nil
	}
	old, ok := prev.Find(top.Outcome)
	if !ok {
		if old, ok = prev.Top(); !ok {
			return nil
		}
	}

	magnitude := math.Abs(top.Probability - old.Probability)
	if magnitude < threshold {
		return nil
	}

	direction := "increase"
	if top.Probability < old.Probability {
		direction = "decrease"
	}

	return &models.Shift{
		ID:             uuid.New().String(),
		EventID:        curr.EventID,
		EventTitle:     curr.EventTitle,
		Outcome:        top.Outcome,
		Magnitude:      magnitude,
		Direction:      direction,
		OldProbability: old.Probability,
		NewProbability: top.Probability,
		Divergence:     KLDivergence(old.Probability, top.Probability),
		PreviousRunID:  prev.ID,
		RunID:          curr.ID,
		DetectedAt:     time.Now(),
	}
}

// KLDivergence computes KL(pNew || pOld) for a binary (YES/NO) distribution.
// Both probabilities are clamped to [1e-7, 1-1e-7] to avoid ln(0).
// Returns the information gain (in nats) of updating from pOld to pNew.
func KLDivergence(pOld, pNew float64) float64 {
	pOld = math.Max(probEpsilon, math.Min(1-probEpsilon, pOld))
	pNew = math.Max(probEpsilon, math.Min(1-probEpsilon, pNew))
	return pNew*math.Log(pNew/pOld) + (1-pNew)*math.Log((1-pNew)/(1-pOld))
}

// isConfidentZone reports whether a prediction sits near the engine's probability
// bounds, where a further move is worth repeating.
func isConfidentZone(p float64) bool {
	return p >= 0.85 || p <= 0.15
}

func notifiedKey(s models.Shift) string {
	return s.EventID + "\x00" + s.Outcome
}

// FilterRecentlySent drops shifts whose outcome was notified within cooldown in the
// same direction, unless the shift enters the confident zone. Returns a non-nil slice.
func (m *Monitor) FilterRecentlySent(shifts []models.Shift, cooldown time.Duration) []models.Shift {
	now := m.now()
	result := make([]models.Shift, 0, len(shifts))

	for _, s := range shifts {
		rec, exists := m.notified[notifiedKey(s)]
		if exists && now.Sub(rec.SentAt) < cooldown {
			sameDirection := rec.Direction == s.Direction
			entering := isConfidentZone(s.NewProbability) && !isConfidentZone(rec.NewProb)
			if sameDirection && !entering {
				logger.Debug("FilterRecentlySent: suppressing %s/%s (%s)", s.EventID, s.Outcome, s.Direction)
				continue
			}
		}
		result = append(result, s)
	}
	return result
}

// RecordNotified records the shifts as notified now.
// Call this after a successful Telegram send to enable cooldown deduplication.
func (m *Monitor) RecordNotified(shifts []models.Shift) {
	now := m.now()
	for _, s := range shifts {
		m.notified[notifiedKey(s)] = notifiedRecord{
			Direction: s.Direction,
			NewProb:   s.NewProbability,
			SentAt:    now,
		}
	}
}
