// Package polymarket fetches prediction-market events from the Polymarket Gamma API
// and converts them into models.Event records for the causality engine.
package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/rewired-gh/causaloracle/internal/logger"
	"github.com/rewired-gh/causaloracle/internal/models"
)

// ErrEventNotFound is returned when the API has no event with the requested id.
var ErrEventNotFound = errors.New("event not found")

// Client provides access to Polymarket API
type Client struct {
	apiBaseURL     string
	httpClient     *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	retryDelayBase time.Duration
}

// ClientConfig holds retry and rate-limit settings for the client.
type ClientConfig struct {
	MaxRetries        int
	RetryDelayBase    time.Duration
	RequestsPerSecond float64
}

// PolymarketEvent represents an event from Polymarket API
type PolymarketEvent struct {
	ID          string             `json:"id"`
	Slug        string             `json:"slug"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Active      bool               `json:"active"`
	Closed      bool               `json:"closed"`
	Volume      float64            `json:"volume"`
	Volume24hr  float64            `json:"volume24hr"`
	Liquidity   float64            `json:"liquidity"`
	StartDate   string             `json:"startDate"`
	EndDate     string             `json:"endDate"`
	Markets     []PolymarketMarket `json:"markets"`
}

// PolymarketMarket represents a market from Polymarket API.
// Outcomes and OutcomePrices are JSON-encoded string arrays.
type PolymarketMarket struct {
	ID            string `json:"id"`
	Question      string `json:"question"`
	Outcomes      string `json:"outcomes"`
	OutcomePrices string `json:"outcomePrices"`
}

// NewClient creates a new Polymarket client
func NewClient(apiBaseURL string, timeout time.Duration, cfg ClientConfig) *Client {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{
		apiBaseURL: apiBaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter:        rate.NewLimiter(limit, 1),
		maxRetries:     max(cfg.MaxRetries, 0),
		retryDelayBase: cfg.RetryDelayBase,
	}
}

// FetchEvent retrieves a single event by id.
func (c *Client) FetchEvent(ctx context.Context, id string) (*models.Event, error) {
	endpoint := fmt.Sprintf("%s/events/%s", c.apiBaseURL, url.PathEscape(id))

	body, err := c.doRequest(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch event %s: %w", id, err)
	}

	var pe PolymarketEvent
	if err := json.Unmarshal(body, &pe); err != nil {
		return nil, fmt.Errorf("failed to decode event %s: %w", id, err)
	}

	event := convertEvent(pe)
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("invalid event %s: %w", id, err)
	}
	return &event, nil
}

// FetchEvents retrieves the most active open events, ordered by 24-hour volume.
// Events that fail validation are skipped.
func (c *Client) FetchEvents(ctx context.Context, limit int) ([]models.Event, error) {
	params := url.Values{}
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("order", "volume24hr")
	params.Set("ascending", "false")
	endpoint := fmt.Sprintf("%s/events?%s", c.apiBaseURL, params.Encode())

	body, err := c.doRequest(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}

	var response []PolymarketEvent
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}

	events := make([]models.Event, 0, len(response))
	for _, pe := range response {
		event := convertEvent(pe)
		if err := event.Validate(); err != nil {
			logger.Warn("Skipping event %s: %v", pe.ID, err)
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

func convertEvent(pe PolymarketEvent) models.Event {
	event := models.Event{
		ID:          pe.ID,
		Title:       pe.Title,
		Description: pe.Description,
		Volume:      pe.Volume,
		Volume24hr:  pe.Volume24hr,
		Liquidity:   pe.Liquidity,
		StartDate:   parseTime(pe.StartDate),
		CloseDate:   parseTime(pe.EndDate),
		Active:      pe.Active,
		Closed:      pe.Closed,
	}
	if pe.Slug != "" {
		event.URL = "https://polymarket.com/event/" + pe.Slug
	}
	for _, pm := range pe.Markets {
		event.Markets = append(event.Markets, models.Market{
			ID:       pm.ID,
			Question: pm.Question,
			Outcomes: parseOutcomes(pm),
		})
	}
	return event
}

// parseOutcomes decodes the string-encoded outcome arrays of a market.
// Malformed or mismatched encodings yield no outcomes.
func parseOutcomes(pm PolymarketMarket) []models.Outcome {
	if pm.Outcomes == "" || pm.OutcomePrices == "" {
		return nil
	}
	var labels, prices []string
	if err := json.Unmarshal([]byte(pm.Outcomes), &labels); err != nil {
		logger.Debug("Market %s: malformed outcomes %q", pm.ID, pm.Outcomes)
		return nil
	}
	if err := json.Unmarshal([]byte(pm.OutcomePrices), &prices); err != nil {
		logger.Debug("Market %s: malformed outcome prices %q", pm.ID, pm.OutcomePrices)
		return nil
	}
	if len(labels) != len(prices) {
		return nil
	}

	outcomes := make([]models.Outcome, 0, len(labels))
	for i, label := range labels {
		price, err := strconv.ParseFloat(prices[i], 64)
		if err != nil || price < 0 || price > 1 {
			return nil
		}
		outcomes = append(outcomes, models.Outcome{Label: label, Price: price})
	}
	return outcomes
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.code)
}

// doRequest performs HTTP request with retry logic.
// Transport errors and 5xx responses are retried with linear backoff; 4xx fails immediately.
func (c *Client) doRequest(ctx context.Context, endpoint string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * c.retryDelayBase):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			logger.Debug("Polymarket request failed (attempt %d): %v", attempt+1, err)
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, ErrEventNotFound
		case resp.StatusCode >= 500:
			lastErr = &statusError{code: resp.StatusCode}
			logger.Debug("Polymarket server error %d (attempt %d)", resp.StatusCode, attempt+1)
			continue
		case resp.StatusCode >= 400:
			return nil, &statusError{code: resp.StatusCode}
		}
		if readErr != nil {
			lastErr = fmt.Errorf("failed to read response: %w", readErr)
			continue
		}
		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
