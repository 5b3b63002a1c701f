package models

import (
	"errors"
	"math"
)

// RelationType classifies how a cause phrase relates to its effect.
type RelationType string

const (
	RelationDirect      RelationType = "direct"
	RelationConditional RelationType = "conditional"
	RelationTemporal    RelationType = "temporal"
	RelationCorrelation RelationType = "correlation"
	RelationNegative    RelationType = "negative"
)

// Temporal is the tense a relation was reported in.
type Temporal string

const (
	TemporalPast    Temporal = "past"
	TemporalPresent Temporal = "present"
	TemporalFuture  Temporal = "future"
	TemporalUnknown Temporal = "unknown"
)

// CausalRelation is a cause/effect pair extracted from one source's text.
// It only lives for the duration of a graph build.
type CausalRelation struct {
	Cause       string       `json:"cause"`
	Effect      string       `json:"effect"`
	Confidence  float64      `json:"confidence"`
	Type        RelationType `json:"type"`
	Temporal    Temporal     `json:"temporal"`
	SourceTitle string       `json:"source_title"`
}

// Validate checks that the relation fields are valid.
func (r *CausalRelation) Validate() error {
	if r.Cause == "" {
		return errors.New("relation cause must not be empty")
	}
	if r.Effect == "" {
		return errors.New("relation effect must not be empty")
	}
	if r.Confidence < 0.0 || r.Confidence > 1.0 {
		return errors.New("relation confidence must be between 0.0 and 1.0")
	}
	switch r.Type {
	case RelationDirect, RelationConditional, RelationTemporal, RelationCorrelation, RelationNegative:
	default:
		return errors.New("relation type must be one of: direct, conditional, temporal, correlation, negative")
	}
	switch r.Temporal {
	case TemporalPast, TemporalPresent, TemporalFuture, TemporalUnknown:
	default:
		return errors.New("relation temporal must be one of: past, present, future, unknown")
	}
	return nil
}

// Clamp bounds v to [lo, hi]. NaN is mapped to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
