package alert

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/opensource-access/kestrel/internal/domain"
)

// Dispatcher subscribes to the alert topic and fans incoming alerts out to
// the configured terminal sinks.
type Dispatcher struct {
	bus   domain.EventBus
	sinks []domain.AlertSink

	subscription domain.Subscription
	cancel       context.CancelFunc
}

// NewDispatcher creates a dispatcher delivering to the given sinks.
func NewDispatcher(bus domain.EventBus, sinks ...domain.AlertSink) *Dispatcher {
	return &Dispatcher{
		bus:   bus,
		sinks: sinks,
	}
}

// Start subscribes to the alert topic.
func (d *Dispatcher) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	sub, err := d.bus.Subscribe(ctx, domain.TopicAlert, d.handleMessage)
	if err != nil {
		cancel()
		return err
	}
	d.subscription = sub

	slog.Info("alert dispatcher started",
		"topic", domain.TopicAlert,
		"sink_count", len(d.sinks),
	)
	return nil
}

// handleMessage delivers one alert to every sink. A failing sink is logged
// and skipped; the other sinks still get the alert.
func (d *Dispatcher) handleMessage(ctx context.Context, msg *domain.Message) error {
	var alert domain.Alert
	if err := json.Unmarshal(msg.Payload, &alert); err != nil {
		slog.Error("failed to parse alert message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	for _, sink := range d.sinks {
		if err := sink.Notify(ctx, alert); err != nil {
			slog.Error("alert sink delivery failed",
				"credential_id", alert.CredentialID,
				"error", err,
			)
		}
	}
	return nil
}

// Stop unsubscribes and stops delivery.
func (d *Dispatcher) Stop() error {
	if d.cancel != nil {
		d.cancel()
	}
	if d.subscription != nil {
		if err := d.subscription.Unsubscribe(); err != nil {
			return err
		}
		d.subscription = nil
	}
	slog.Info("alert dispatcher stopped")
	return nil
}
