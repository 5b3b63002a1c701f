package models

import (
	"errors"
	"strings"
)

// DefaultRelevance is applied when a source carries no relevance score.
const DefaultRelevance = 0.5

// Source is a document supplied by the web-search collaborator as raw material
// for causal extraction.
type Source struct {
	Title          string   `json:"title"`
	URL            string   `json:"url,omitempty"`
	Text           string   `json:"text"`
	RelevanceScore *float64 `json:"relevance_score,omitempty"` // nil means unscored
	IsRecent       bool     `json:"is_recent,omitempty"`
	Provenance     string   `json:"source,omitempty"` // publisher label, e.g. "Reuters"
}

// Relevance returns the relevance score clamped to [0,1], or DefaultRelevance
// when the source is unscored.
func (s *Source) Relevance() float64 {
	if s.RelevanceScore == nil {
		return DefaultRelevance
	}
	return Clamp(*s.RelevanceScore, 0, 1)
}

// Validate checks that the source is usable as evidence.
// Out-of-range relevance scores are tolerated (they are clamped on use).
func (s *Source) Validate() error {
	if strings.TrimSpace(s.Title) == "" && strings.TrimSpace(s.Text) == "" {
		return errors.New("source must have a title or text")
	}
	return nil
}

// Score is a convenience for building a RelevanceScore pointer.
func Score(v float64) *float64 {
	return &v
}
