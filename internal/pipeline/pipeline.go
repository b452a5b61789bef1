package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-access/kestrel/internal/domain"
	"github.com/opensource-access/kestrel/internal/profile"
	"github.com/opensource-access/kestrel/internal/rules"
)

// Pipeline runs one batch analysis: fetch both origins, merge, profile,
// score, report. It is stateless across runs; concurrent runs are safe
// because replay state lives inside each Evaluate call.
type Pipeline struct {
	source domain.EventSource
	engine *rules.Engine
	repo   domain.Repository
	bus    domain.EventBus
}

// New creates a batch pipeline. repo and bus may be nil; persistence and
// publication are then skipped.
func New(source domain.EventSource, engine *rules.Engine, repo domain.Repository, bus domain.EventBus) *Pipeline {
	return &Pipeline{
		source: source,
		engine: engine,
		repo:   repo,
		bus:    bus,
	}
}

// Run executes one batch analysis and returns a best-effort report.
// Source failures are logged and treated as "no data from that origin";
// the caller always gets a report, with NoData set when both origins came
// back empty.
func (p *Pipeline) Run(ctx context.Context) (*domain.Report, error) {
	start := time.Now()

	historical, err := p.source.FetchHistorical(ctx)
	if err != nil {
		slog.Warn("historical source unavailable, continuing without history", "error", err)
		historical = nil
	}

	live, err := p.source.FetchLiveBatch(ctx)
	if err != nil {
		slog.Warn("live source unavailable, continuing without live data", "error", err)
		live = nil
	}

	merged, duplicates := Merge(historical, live)
	profiles := profile.Build(merged)
	results := p.engine.Evaluate(merged, profiles)

	report := &domain.Report{
		ID:              uuid.New().String(),
		GeneratedAt:     time.Now().UTC(),
		Results:         results,
		Counts:          domain.CountClassifications(results),
		NoData:          len(historical) == 0 && len(live) == 0,
		HistoricalCount: len(historical),
		LiveCount:       len(live),
		DuplicateCount:  duplicates,
	}

	if p.repo != nil {
		if err := p.repo.SaveReport(ctx, report); err != nil {
			slog.Error("failed to save report", "report_id", report.ID, "error", err)
		}
	}

	if p.bus != nil {
		payload, _ := json.Marshal(report)
		if err := p.bus.Publish(ctx, domain.TopicReport, payload); err != nil {
			slog.Error("failed to publish report", "report_id", report.ID, "error", err)
		}
	}

	slog.Info("batch analysis complete",
		"report_id", report.ID,
		"events", len(merged),
		"duplicates", duplicates,
		"no_data", report.NoData,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return report, nil
}
