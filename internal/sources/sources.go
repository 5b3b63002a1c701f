// Package sources loads the source documents that feed the causality engine.
// A corpus file is YAML (JSON is accepted as a subset) of the form:
//
//	documents:
//	  - event_id: "12345"        # empty applies to every event
//	    title: "Central bank minutes"
//	    url: "https://example.com/minutes"
//	    text: "Rate cuts were delayed because of sticky inflation."
//	    relevance_score: 0.9
//	    is_recent: true
//	    source: "Reuters"
//	events:                      # optional offline event records
//	  - id: "12345"
//	    title: "Will the Fed cut rates in June?"
//	    volume: 250000
//	    liquidity: 80000
//	    close_date: "2026-06-30"
package sources

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rewired-gh/causaloracle/internal/models"
)

// Document is a source document bound to an event.
type Document struct {
	EventID string
	models.Source
}

// Corpus is the set of documents and offline events loaded from one file.
type Corpus struct {
	Path      string
	Documents []Document
	events    map[string]models.Event
}

type documentRecord struct {
	EventID        string   `yaml:"event_id"`
	Title          string   `yaml:"title"`
	URL            string   `yaml:"url"`
	Text           string   `yaml:"text"`
	RelevanceScore *float64 `yaml:"relevance_score"`
	IsRecent       bool     `yaml:"is_recent"`
	Source         string   `yaml:"source"`
}

type eventRecord struct {
	ID          string  `yaml:"id"`
	Title       string  `yaml:"title"`
	Description string  `yaml:"description"`
	URL         string  `yaml:"url"`
	Volume      float64 `yaml:"volume"`
	Liquidity   float64 `yaml:"liquidity"`
	CloseDate   string  `yaml:"close_date"`
}

type corpusFile struct {
	Documents []yaml.Node `yaml:"documents"`
	Events    []yaml.Node `yaml:"events"`
}

// LoadFile reads and validates a corpus file.
func LoadFile(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	c.Path = path
	return c, nil
}

// Parse decodes a corpus from YAML or JSON bytes. Invalid documents or events
// are reported with their line number.
func Parse(data []byte) (*Corpus, error) {
	c := &Corpus{events: make(map[string]models.Event)}
	if len(bytes.TrimSpace(data)) == 0 {
		return c, nil
	}

	var file corpusFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("invalid corpus: %w", err)
	}

	for i := range file.Documents {
		node := &file.Documents[i]
		var rec documentRecord
		if err := node.Decode(&rec); err != nil {
			return nil, fmt.Errorf("document %d (line %d): %w", i+1, node.Line, err)
		}
		doc := Document{
			EventID: strings.TrimSpace(rec.EventID),
			Source: models.Source{
				Title:          strings.TrimSpace(rec.Title),
				URL:            rec.URL,
				Text:           rec.Text,
				RelevanceScore: rec.RelevanceScore,
				IsRecent:       rec.IsRecent,
				Provenance:     strings.TrimSpace(rec.Source),
			},
		}
		if err := doc.Validate(); err != nil {
			return nil, fmt.Errorf("document %d (line %d): %w", i+1, node.Line, err)
		}
		c.Documents = append(c.Documents, doc)
	}

	for i := range file.Events {
		node := &file.Events[i]
		var rec eventRecord
		if err := node.Decode(&rec); err != nil {
			return nil, fmt.Errorf("event %d (line %d): %w", i+1, node.Line, err)
		}
		event, err := rec.toEvent()
		if err != nil {
			return nil, fmt.Errorf("event %d (line %d): %w", i+1, node.Line, err)
		}
		if _, dup := c.events[event.ID]; dup {
			return nil, fmt.Errorf("event %d (line %d): duplicate id %q", i+1, node.Line, event.ID)
		}
		c.events[event.ID] = event
	}

	return c, nil
}

func (r eventRecord) toEvent() (models.Event, error) {
	event := models.Event{
		ID:          strings.TrimSpace(r.ID),
		Title:       strings.TrimSpace(r.Title),
		Description: r.Description,
		URL:         r.URL,
		Volume:      r.Volume,
		Liquidity:   r.Liquidity,
		Active:      true,
	}
	if event.ID == "" {
		return event, fmt.Errorf("event id must not be empty")
	}
	if r.CloseDate != "" {
		t, err := parseDate(r.CloseDate)
		if err != nil {
			return event, err
		}
		event.CloseDate = t
	}
	if err := event.Validate(); err != nil {
		return event, err
	}
	return event, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid close_date %q", s)
}

// ForEvent returns the sources for eventID in file order: documents bound to it
// plus documents with no event id.
func (c *Corpus) ForEvent(eventID string) []models.Source {
	var out []models.Source
	for _, d := range c.Documents {
		if d.EventID == "" || d.EventID == eventID {
			out = append(out, d.Source)
		}
	}
	return out
}

// Event returns the offline event record for id.
func (c *Corpus) Event(id string) (models.Event, bool) {
	e, ok := c.events[id]
	return e, ok
}
