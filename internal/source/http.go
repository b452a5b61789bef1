package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/opensource-access/kestrel/internal/domain"
	"github.com/sony/gobreaker/v2"
)

// HTTPSource reads the live event feed and the occupancy state object from
// a Firebase-style REST endpoint. Every call fails soft at the batch
// boundary: network and decode errors surface as errors the pipeline logs
// and treats as "no data this call".
type HTTPSource struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewHTTPSource creates a live source for the given base URL.
func NewHTTPSource(cfg domain.SourceConfig) (*HTTPSource, error) {
	if cfg.LiveURL == "" {
		return nil, fmt.Errorf("live source URL is required")
	}

	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	// Stop hammering a dead remote: open after five consecutive failures,
	// probe again after the request timeout has passed twice.
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "live-event-feed",
		Timeout: 2 * timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &HTTPSource{
		baseURL: cfg.LiveURL,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
	}, nil
}

// FetchLiveBatch returns all available live records.
func (s *HTTPSource) FetchLiveBatch(ctx context.Context) ([]domain.AccessEvent, error) {
	body, err := s.get(ctx, "/events.json", nil)
	if err != nil {
		return nil, err
	}

	records, err := decodeRecordMap(body)
	if err != nil {
		return nil, err
	}

	return decodeBatch(records, domain.OriginLive), nil
}

// FetchLatest returns the single most-recently-keyed live record, or
// nil, nil when the feed is empty.
func (s *HTTPSource) FetchLatest(ctx context.Context) (*domain.AccessEvent, error) {
	query := url.Values{}
	query.Set("orderBy", `"$key"`)
	query.Set("limitToLast", "1")

	body, err := s.get(ctx, "/events.json", query)
	if err != nil {
		return nil, err
	}

	records, err := decodeRecordMap(body)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	events := decodeBatch(records, domain.OriginLive)
	if len(events) == 0 {
		// The latest record exists but is malformed; treat as no data.
		return nil, nil
	}
	return &events[len(events)-1], nil
}

// FetchState returns the current occupancy snapshot.
func (s *HTTPSource) FetchState(ctx context.Context) (*domain.StateSnapshot, error) {
	body, err := s.get(ctx, "/state.json", nil)
	if err != nil {
		return nil, err
	}

	var snapshot domain.StateSnapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode state object: %w", err)
	}
	return &snapshot, nil
}

// get performs one GET through the circuit breaker.
func (s *HTTPSource) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	target := s.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	return s.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("live source request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("live source returned status %d", resp.StatusCode)
		}

		return io.ReadAll(resp.Body)
	})
}

// decodeRecordMap parses the feed's {"<key>": {record}} shape. A bare
// "null" body means an empty feed, not an error.
func decodeRecordMap(body []byte) (map[string]wireEvent, error) {
	var records map[string]wireEvent
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to decode event records: %w", err)
	}
	return records, nil
}
