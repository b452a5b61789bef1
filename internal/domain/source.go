package domain

import (
	"context"
)

// HistoricalSource is the bulk origin: the full recorded event history.
type HistoricalSource interface {
	// FetchHistorical returns every stored event. A missing or unreachable
	// store yields an error the caller treats as "no data", never as fatal.
	FetchHistorical(ctx context.Context) ([]AccessEvent, error)
}

// LiveSource is the remote feed origin.
type LiveSource interface {
	// FetchLiveBatch returns all available live records.
	FetchLiveBatch(ctx context.Context) ([]AccessEvent, error)

	// FetchLatest returns the single most recent live record, or nil, nil
	// when the feed is empty.
	FetchLatest(ctx context.Context) (*AccessEvent, error)
}

// EventSource combines both origins behind one adapter boundary, so the
// batch pipeline and tests can substitute fakes.
type EventSource interface {
	HistoricalSource
	LiveSource
}

// StateSnapshot is the remote occupancy object.
type StateSnapshot struct {
	CurrentOccupancy int `json:"ocupacao_atual"`
	OccupancyLimit   int `json:"limite_ocupacao"`
}

// StateSource fetches the current occupancy snapshot.
type StateSource interface {
	FetchState(ctx context.Context) (*StateSnapshot, error)
}
