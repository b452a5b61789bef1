package source

import (
	"context"

	"github.com/opensource-access/kestrel/internal/domain"
)

// RepositorySource reads the bulk history from the SQL event store. The
// store is append-only from Kestrel's point of view: an external actuator
// writes it, the pipeline only reads.
type RepositorySource struct {
	repo domain.Repository
}

// NewRepositorySource creates a repository-backed historical source.
func NewRepositorySource(repo domain.Repository) *RepositorySource {
	return &RepositorySource{repo: repo}
}

// FetchHistorical returns every stored event in insertion order.
func (s *RepositorySource) FetchHistorical(ctx context.Context) ([]domain.AccessEvent, error) {
	return s.repo.ListEvents(ctx)
}

// Adapter composes a historical origin and a live origin into the single
// EventSource the batch pipeline consumes.
type Adapter struct {
	domain.HistoricalSource
	domain.LiveSource
}

// NewAdapter combines the two origins.
func NewAdapter(historical domain.HistoricalSource, live domain.LiveSource) *Adapter {
	return &Adapter{HistoricalSource: historical, LiveSource: live}
}
