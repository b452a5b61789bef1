package alert

import (
	"context"
	"encoding/json"

	"github.com/opensource-access/kestrel/internal/domain"
)

// BusSink publishes alerts to the event bus alert topic, decoupling the
// monitor from delivery channels. The dispatcher consumes the topic and
// fans out to the terminal sinks.
type BusSink struct {
	bus domain.EventBus
}

// NewBusSink creates a bus-backed sink.
func NewBusSink(bus domain.EventBus) *BusSink {
	return &BusSink{bus: bus}
}

// Notify publishes the alert.
func (s *BusSink) Notify(ctx context.Context, alert domain.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	return s.bus.Publish(ctx, domain.TopicAlert, payload)
}
