package monitor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/opensource-access/kestrel/internal/domain"
)

// fakeLive serves a scripted sequence of FetchLatest responses.
type fakeLive struct {
	mu        sync.Mutex
	responses []latestResponse
	calls     int
}

type latestResponse struct {
	event *domain.AccessEvent
	err   error
}

func (f *fakeLive) FetchLiveBatch(ctx context.Context) ([]domain.AccessEvent, error) {
	return nil, nil
}

func (f *fakeLive) FetchLatest(ctx context.Context) (*domain.AccessEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.responses) == 0 {
		return nil, nil
	}
	r := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return r.event, r.err
}

// recordingSink counts deliveries and optionally fails them.
type recordingSink struct {
	mu     sync.Mutex
	alerts []domain.Alert
	err    error
}

func (s *recordingSink) Notify(ctx context.Context, alert domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

func fraudEvent(credID, ts string) *domain.AccessEvent {
	parsed, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	flag := true
	return &domain.AccessEvent{
		CredentialID: credID,
		Timestamp:    parsed,
		RawTimestamp: ts,
		ReaderKind:   domain.ReaderEntry,
		Fraudulent:   &flag,
		Origin:       domain.OriginLive,
	}
}

func cleanEvent(credID, ts string) *domain.AccessEvent {
	ev := fraudEvent(credID, ts)
	flag := false
	ev.Fraudulent = &flag
	return ev
}

func testMonitorConfig() domain.MonitorConfig {
	return domain.MonitorConfig{
		PollInterval: time.Millisecond,
		ErrorBackoff: 5 * time.Millisecond,
	}
}

func TestPollAlertsOnceOnFraud(t *testing.T) {
	ev := fraudEvent("card-001", "2026-03-02T08:00:00Z")
	source := &fakeLive{responses: []latestResponse{{event: ev}}}
	sink := &recordingSink{}

	m := New(source, sink, testMonitorConfig())

	// The same latest event observed across several polls alerts only once.
	for i := 0; i < 3; i++ {
		if err := m.poll(context.Background()); err != nil {
			t.Fatalf("poll failed: %v", err)
		}
	}

	if sink.count() != 1 {
		t.Errorf("expected exactly 1 alert, got %d", sink.count())
	}
	if sink.alerts[0].CredentialID != "card-001" {
		t.Errorf("alert carries wrong credential: %s", sink.alerts[0].CredentialID)
	}
}

func TestPollIgnoresUnflaggedEvents(t *testing.T) {
	source := &fakeLive{responses: []latestResponse{
		{event: cleanEvent("card-002", "2026-03-02T08:00:00Z")},
	}}
	sink := &recordingSink{}

	m := New(source, sink, testMonitorConfig())
	if err := m.poll(context.Background()); err != nil {
		t.Fatalf("poll failed: %v", err)
	}

	if sink.count() != 0 {
		t.Errorf("unflagged event must not alert, got %d alerts", sink.count())
	}

	// The cursor still advanced: re-observing the event stays silent.
	if m.lastProcessed == "" {
		t.Error("cursor should advance past an unflagged event")
	}
}

func TestPollIgnoresAbsentFlag(t *testing.T) {
	ev := fraudEvent("card-003", "2026-03-02T08:00:00Z")
	ev.Fraudulent = nil
	source := &fakeLive{responses: []latestResponse{{event: ev}}}
	sink := &recordingSink{}

	m := New(source, sink, testMonitorConfig())
	if err := m.poll(context.Background()); err != nil {
		t.Fatalf("poll failed: %v", err)
	}

	if sink.count() != 0 {
		t.Errorf("absent flag must not alert, got %d alerts", sink.count())
	}
}

func TestPollEmptyFeedIsNoOp(t *testing.T) {
	source := &fakeLive{}
	sink := &recordingSink{}

	m := New(source, sink, testMonitorConfig())
	if err := m.poll(context.Background()); err != nil {
		t.Fatalf("empty feed should not error: %v", err)
	}
	if sink.count() != 0 {
		t.Errorf("empty feed must not alert, got %d", sink.count())
	}
	if m.lastProcessed != "" {
		t.Errorf("cursor must not move on an empty feed, got %q", m.lastProcessed)
	}
}

func TestPollCursorAdvancesOnSinkFailure(t *testing.T) {
	ev := fraudEvent("card-004", "2026-03-02T08:00:00Z")
	source := &fakeLive{responses: []latestResponse{{event: ev}}}
	sink := &recordingSink{err: fmt.Errorf("sink down")}

	m := New(source, sink, testMonitorConfig())

	if err := m.poll(context.Background()); err != nil {
		t.Fatalf("sink failure must not fail the poll: %v", err)
	}
	if m.lastProcessed != ev.IdentityKey() {
		t.Error("cursor must advance even when delivery fails")
	}

	// No alert storm: the failed identity is never retried.
	if err := m.poll(context.Background()); err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if sink.count() != 1 {
		t.Errorf("expected a single delivery attempt, got %d", sink.count())
	}
}

func TestPollFetchErrorPropagates(t *testing.T) {
	source := &fakeLive{responses: []latestResponse{
		{err: fmt.Errorf("feed unreachable")},
	}}
	sink := &recordingSink{}

	m := New(source, sink, testMonitorConfig())
	if err := m.poll(context.Background()); err == nil {
		t.Error("expected fetch error to propagate for backoff")
	}
	if m.lastProcessed != "" {
		t.Error("cursor must not move on a fetch error")
	}
}

func TestPollDistinctIdentitiesEachAlert(t *testing.T) {
	source := &fakeLive{responses: []latestResponse{
		{event: fraudEvent("card-005", "2026-03-02T08:00:00Z")},
		{event: fraudEvent("card-005", "2026-03-02T09:00:00Z")},
		{event: fraudEvent("card-006", "2026-03-02T09:00:00Z")},
	}}
	sink := &recordingSink{}

	m := New(source, sink, testMonitorConfig())
	for i := 0; i < 3; i++ {
		if err := m.poll(context.Background()); err != nil {
			t.Fatalf("poll failed: %v", err)
		}
	}

	if sink.count() != 3 {
		t.Errorf("three distinct identities should alert three times, got %d", sink.count())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	source := &fakeLive{}
	sink := &recordingSink{}

	m := New(source, sink, testMonitorConfig())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	// Let the loop make at least one pass, then cancel.
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop after cancellation")
	}
}

func TestRunKeepsPollingAfterErrors(t *testing.T) {
	source := &fakeLive{responses: []latestResponse{
		{err: fmt.Errorf("transient failure")},
		{event: fraudEvent("card-007", "2026-03-02T08:00:00Z")},
	}}
	sink := &recordingSink{}

	m := New(source, sink, testMonitorConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	<-done

	// The loop survived the error iteration and processed the next event.
	if sink.count() != 1 {
		t.Errorf("expected 1 alert after recovering from the error, got %d", sink.count())
	}
}
