package bus

import (
	"fmt"

	"github.com/opensource-access/kestrel/internal/domain"
)

// New builds the configured bus: "channel" for in-process delivery,
// "nats" for multi-process deployments.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil
	case "nats":
		return NewNATSBus(cfg)
	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}
