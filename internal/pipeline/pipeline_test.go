package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/opensource-access/kestrel/internal/domain"
	"github.com/opensource-access/kestrel/internal/rules"
)

// fakeSource is an in-memory EventSource for pipeline tests.
type fakeSource struct {
	historical    []domain.AccessEvent
	live          []domain.AccessEvent
	historicalErr error
	liveErr       error
}

func (s *fakeSource) FetchHistorical(ctx context.Context) ([]domain.AccessEvent, error) {
	return s.historical, s.historicalErr
}

func (s *fakeSource) FetchLiveBatch(ctx context.Context) ([]domain.AccessEvent, error) {
	return s.live, s.liveErr
}

func (s *fakeSource) FetchLatest(ctx context.Context) (*domain.AccessEvent, error) {
	if len(s.live) == 0 {
		return nil, nil
	}
	return &s.live[len(s.live)-1], nil
}

func testEngine(t *testing.T) *rules.Engine {
	t.Helper()
	engine, err := rules.NewEngine(domain.ScoringConfig{
		FraudThreshold:         4,
		SuspiciousThreshold:    2,
		MinDwellMinutes:        1,
		HourDeviationThreshold: 3,
	})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return engine
}

func TestPipelineRun(t *testing.T) {
	source := &fakeSource{
		historical: []domain.AccessEvent{
			mkEvent("card-001", "2026-03-02T08:00:00Z", domain.ReaderEntry, domain.OriginHistorical),
			mkEvent("card-001", "2026-03-02T17:00:00Z", domain.ReaderExit, domain.OriginHistorical),
		},
		live: []domain.AccessEvent{
			// Duplicate of a historical record plus one fresh anomaly.
			mkEvent("card-001", "2026-03-02T08:00:00Z", domain.ReaderEntry, domain.OriginLive),
			mkEvent("card-001", "2026-03-02T17:05:00Z", domain.ReaderExit, domain.OriginLive),
		},
	}

	pipe := New(source, testEngine(t), nil, nil)

	report, err := pipe.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.ID == "" {
		t.Error("report should have an ID")
	}
	if report.NoData {
		t.Error("report should not be marked NoData")
	}
	if report.HistoricalCount != 2 || report.LiveCount != 2 {
		t.Errorf("expected counts 2/2, got %d/%d", report.HistoricalCount, report.LiveCount)
	}
	if report.DuplicateCount != 1 {
		t.Errorf("expected 1 duplicate, got %d", report.DuplicateCount)
	}
	if len(report.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(report.Results))
	}

	// The double exit at 17:05 must be flagged by the sequence rule.
	last := report.Results[2]
	if last.Score != 3 || last.Classification != domain.ClassSuspicious {
		t.Errorf("expected duplicate exit flagged, got score=%d class=%s", last.Score, last.Classification)
	}

	total := 0
	for _, n := range report.Counts {
		total += n
	}
	if total != len(report.Results) {
		t.Errorf("counts do not fold results: %d vs %d", total, len(report.Results))
	}
}

func TestPipelineRunNoData(t *testing.T) {
	pipe := New(&fakeSource{}, testEngine(t), nil, nil)

	report, err := pipe.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !report.NoData {
		t.Error("expected NoData report for empty origins")
	}
	if len(report.Results) != 0 {
		t.Errorf("expected no results, got %d", len(report.Results))
	}
}

func TestPipelineRunSurvivesSourceFailure(t *testing.T) {
	source := &fakeSource{
		historicalErr: fmt.Errorf("store unreachable"),
		live: []domain.AccessEvent{
			mkEvent("card-002", "2026-03-02T08:00:00Z", domain.ReaderEntry, domain.OriginLive),
		},
	}

	pipe := New(source, testEngine(t), nil, nil)

	report, err := pipe.Run(context.Background())
	if err != nil {
		t.Fatalf("Run should not fail on a single origin error: %v", err)
	}

	if report.NoData {
		t.Error("live data was available, report must not be NoData")
	}
	if len(report.Results) != 1 {
		t.Errorf("expected 1 result from the live origin, got %d", len(report.Results))
	}
}

func TestPipelineRunDeterministic(t *testing.T) {
	source := &fakeSource{
		historical: []domain.AccessEvent{
			mkEvent("card-003", "2026-03-02T08:00:00Z", domain.ReaderEntry, domain.OriginHistorical),
			mkEvent("card-004", "2026-03-02T08:00:00Z", domain.ReaderEntry, domain.OriginHistorical),
			mkEvent("card-003", "2026-03-02T08:00:30Z", domain.ReaderExit, domain.OriginHistorical),
		},
	}

	pipe := New(source, testEngine(t), nil, nil)

	first, err := pipe.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	second, err := pipe.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(first.Results) != len(second.Results) {
		t.Fatalf("result lengths disagree: %d vs %d", len(first.Results), len(second.Results))
	}
	for i := range first.Results {
		a, b := first.Results[i], second.Results[i]
		if a.CredentialID != b.CredentialID || a.Score != b.Score || a.Classification != b.Classification {
			t.Errorf("result %d differs between runs: %+v vs %+v", i, a, b)
		}
	}
}
