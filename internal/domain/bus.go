package domain

import (
	"context"
)

// EventBus decouples the monitor and pipeline from alert delivery. The
// channel bus serves single-node deployments; NATS serves multi-process
// ones.
type EventBus interface {
	// Publish sends a payload to every subscriber of the topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	Ping(ctx context.Context) error
	Close() error
}

// MessageHandler processes one delivered message.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message is the bus envelope.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription is an active topic registration.
type Subscription interface {
	// Unsubscribe stops delivery to this subscriber.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string `yaml:"type" json:"type"`

	// Channel settings
	ChannelBufferSize int `yaml:"channelBufferSize" json:"channelBufferSize"`

	// NATS settings
	NATSUrl           string `yaml:"natsUrl" json:"natsUrl"`
	NATSToken         string `yaml:"natsToken" json:"-"`
	NATSMaxReconnects int    `yaml:"natsMaxReconnects" json:"natsMaxReconnects"`
	NATSReconnectWait int    `yaml:"natsReconnectWait" json:"natsReconnectWait"` // seconds
}

// Topics carried on the bus.
const (
	TopicAlert  = "kestrel.access.alert"
	TopicReport = "kestrel.access.report"
)
