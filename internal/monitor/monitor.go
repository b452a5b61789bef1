// Package monitor implements the live fraud monitoring loop.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-access/kestrel/internal/domain"
)

// Monitor polls the live source for the single newest event and alerts
// exactly once per newly-observed fraudulent identity. Exactly one monitor
// runs per process; a second instance would double-alert.
type Monitor struct {
	source domain.LiveSource
	sink   domain.AlertSink
	cfg    domain.MonitorConfig

	// lastProcessed is the cursor: the identity key of the last event this
	// loop has evaluated. Owned exclusively by Run; in-memory only, so a
	// restart re-alerts on the current latest event if it is still flagged.
	lastProcessed string
}

// New creates a monitor. The sink is trusted to be safe for concurrent use.
func New(source domain.LiveSource, sink domain.AlertSink, cfg domain.MonitorConfig) *Monitor {
	return &Monitor{
		source: source,
		sink:   sink,
		cfg:    cfg,
	}
}

// Run loops until ctx is canceled. It never terminates on error: fetch
// failures get the longer backoff delay, everything else the normal poll
// interval.
func (m *Monitor) Run(ctx context.Context) {
	slog.Info("live monitor started",
		"poll_interval", m.cfg.PollInterval,
		"error_backoff", m.cfg.ErrorBackoff,
	)

	for {
		// Cooperative cancellation before each fetch, never mid-fetch.
		select {
		case <-ctx.Done():
			slog.Info("live monitor stopped")
			return
		default:
		}

		delay := m.cfg.PollInterval
		if err := m.poll(ctx); err != nil {
			slog.Warn("live feed poll failed, backing off", "error", err)
			delay = m.cfg.ErrorBackoff
		}

		select {
		case <-ctx.Done():
			slog.Info("live monitor stopped")
			return
		case <-time.After(delay):
		}
	}
}

// poll runs one iteration. Only a fetch failure is an error; an empty feed
// or an already-seen identity is a normal no-op iteration.
func (m *Monitor) poll(ctx context.Context) error {
	latest, err := m.source.FetchLatest(ctx)
	if err != nil {
		return err
	}
	if latest == nil {
		return nil
	}

	identity := latest.IdentityKey()
	if identity == m.lastProcessed {
		return nil
	}

	// New event. The monitor trusts the upstream's own verdict: a single
	// record carries none of the per-credential history the sequence rules
	// need.
	if latest.Fraudulent != nil && *latest.Fraudulent {
		alert := domain.Alert{
			CredentialID: latest.CredentialID,
			Timestamp:    latest.RawTimestamp,
			Message: fmt.Sprintf("unauthorized access attempt: credential %s at %s",
				latest.CredentialID, latest.RawTimestamp),
		}
		if err := m.sink.Notify(ctx, alert); err != nil {
			// Logged, not retried: the cursor advances below so a failing
			// sink cannot cause an alert storm for the same identity.
			slog.Error("alert delivery failed",
				"credential_id", latest.CredentialID,
				"identity", identity,
				"error", err,
			)
		} else {
			slog.Info("fraud alert sent",
				"credential_id", latest.CredentialID,
				"identity", identity,
			)
		}
	}

	// Advance regardless of the flag and of sink outcome: each identity
	// triggers at most one alert attempt.
	m.lastProcessed = identity
	return nil
}
