package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(url string) *Client {
	return NewClient(url, 5*time.Second, ClientConfig{MaxRetries: 2, RetryDelayBase: time.Millisecond})
}

func sampleEvent() PolymarketEvent {
	// outcomes and outcomePrices are JSON strings, not arrays
	return PolymarketEvent{
		ID:          "event-1",
		Slug:        "inflation-2026",
		Title:       "Will inflation increase in 2026?",
		Description: "Resolves Yes if CPI rises.",
		Active:      true,
		Volume:      1500000,
		Volume24hr:  50000,
		Liquidity:   100000,
		StartDate:   "2026-01-01T00:00:00Z",
		EndDate:     "2026-12-31T00:00:00Z",
		Markets: []PolymarketMarket{
			{
				ID:            "market-1",
				Question:      "Will inflation increase?",
				Outcomes:      "[\"Yes\", \"No\"]",
				OutcomePrices: "[\"0.75\", \"0.25\"]",
			},
		},
	}
}

func TestFetchEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events/event-1" {
			t.Errorf("Expected path /events/event-1, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sampleEvent())
	}))
	defer server.Close()

	event, err := testClient(server.URL).FetchEvent(context.Background(), "event-1")
	if err != nil {
		t.Fatalf("FetchEvent failed: %v", err)
	}

	if event.Title != "Will inflation increase in 2026?" {
		t.Errorf("Unexpected title: %s", event.Title)
	}
	if event.URL != "https://polymarket.com/event/inflation-2026" {
		t.Errorf("Unexpected URL: %s", event.URL)
	}
	if event.Volume != 1500000 || event.Liquidity != 100000 {
		t.Errorf("Unexpected volume/liquidity: %f/%f", event.Volume, event.Liquidity)
	}
	if !event.CloseDate.Equal(time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected close date: %v", event.CloseDate)
	}
	if len(event.Markets) != 1 || len(event.Markets[0].Outcomes) != 2 {
		t.Fatalf("Expected 1 market with 2 outcomes, got %+v", event.Markets)
	}
	leading, ok := event.LeadingOutcome()
	if !ok || leading.Label != "Yes" || leading.Price != 0.75 {
		t.Errorf("Unexpected leading outcome: %+v", leading)
	}
}

func TestFetchEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events" {
			t.Errorf("Expected path /events, got %s", r.URL.Path)
		}
		query := r.URL.Query()
		if query.Get("active") != "true" || query.Get("closed") != "false" {
			t.Errorf("Unexpected filters: %s", r.URL.RawQuery)
		}
		if query.Get("limit") != "5" {
			t.Errorf("Expected limit=5, got %s", query.Get("limit"))
		}
		if query.Get("order") != "volume24hr" {
			t.Errorf("Expected order=volume24hr, got %s", query.Get("order"))
		}

		malformed := sampleEvent()
		malformed.ID = "event-2"
		malformed.Markets[0].OutcomePrices = "not json"

		untitled := sampleEvent()
		untitled.ID = "event-3"
		untitled.Title = ""

		_ = json.NewEncoder(w).Encode([]PolymarketEvent{sampleEvent(), malformed, untitled})
	}))
	defer server.Close()

	events, err := testClient(server.URL).FetchEvents(context.Background(), 5)
	if err != nil {
		t.Fatalf("FetchEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 valid events, got %d", len(events))
	}
	if events[1].ID != "event-2" {
		t.Errorf("Expected event-2 second, got %s", events[1].ID)
	}
	if len(events[1].Markets[0].Outcomes) != 0 {
		t.Errorf("Expected malformed prices to leave no outcomes, got %+v", events[1].Markets[0].Outcomes)
	}
}

func TestParseOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		market PolymarketMarket
		want   int
	}{
		{"valid", PolymarketMarket{Outcomes: `["Yes","No"]`, OutcomePrices: `["0.4","0.6"]`}, 2},
		{"empty", PolymarketMarket{}, 0},
		{"length mismatch", PolymarketMarket{Outcomes: `["Yes","No"]`, OutcomePrices: `["0.4"]`}, 0},
		{"non numeric price", PolymarketMarket{Outcomes: `["Yes"]`, OutcomePrices: `["abc"]`}, 0},
		{"price out of range", PolymarketMarket{Outcomes: `["Yes"]`, OutcomePrices: `["1.4"]`}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseOutcomes(tt.market); len(got) != tt.want {
				t.Errorf("parseOutcomes() = %+v, want %d outcomes", got, tt.want)
			}
		})
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(sampleEvent())
	}))
	defer server.Close()

	if _, err := testClient(server.URL).FetchEvent(context.Background(), "event-1"); err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 calls, got %d", calls.Load())
	}
}

func TestRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if _, err := testClient(server.URL).FetchEvents(context.Background(), 1); err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 calls, got %d", calls.Load())
	}
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		notFound bool
	}{
		{"not found", http.StatusNotFound, true},
		{"bad request", http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := testClient(server.URL).FetchEvent(context.Background(), "missing")
			if err == nil {
				t.Fatal("Expected error")
			}
			if errors.Is(err, ErrEventNotFound) != tt.notFound {
				t.Errorf("errors.Is(err, ErrEventNotFound) = %v, want %v", !tt.notFound, tt.notFound)
			}
			if calls.Load() != 1 {
				t.Errorf("Expected 1 call, got %d", calls.Load())
			}
		})
	}
}

func TestCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, ClientConfig{MaxRetries: 5, RetryDelayBase: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.FetchEvent(ctx, "event-1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}
