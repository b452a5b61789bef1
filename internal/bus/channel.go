// Package bus provides the event bus carrying alert and report messages.
package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-access/kestrel/internal/domain"
)

// ChannelBus is the in-process bus, the default for a single-node
// deployment. Each subscriber owns a buffered channel drained by its own
// goroutine; a full buffer drops the message for that subscriber rather
// than blocking the publisher.
type ChannelBus struct {
	mu          sync.RWMutex
	bufferSize  int
	subsByTopic map[string][]*channelSubscription
	closed      bool
}

type channelSubscription struct {
	topic   string
	handler domain.MessageHandler
	inbox   chan *domain.Message
	cancel  context.CancelFunc
}

// NewChannelBus creates an in-process bus with the given per-subscriber
// buffer size.
func NewChannelBus(bufferSize int) *ChannelBus {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &ChannelBus{
		bufferSize:  bufferSize,
		subsByTopic: make(map[string][]*channelSubscription),
	}
}

// Publish delivers the payload to every subscriber of the topic. Never
// blocks: a subscriber whose inbox is full misses this message.
func (b *ChannelBus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("bus is closed")
	}
	subs := b.subsByTopic[topic]
	b.mu.RUnlock()

	msg := &domain.Message{
		ID:        uuid.New().String(),
		Topic:     topic,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UnixNano(),
	}

	for _, sub := range subs {
		select {
		case sub.inbox <- msg:
		default:
		}
	}
	return nil
}

// Subscribe registers a handler for a topic and starts draining its inbox.
func (b *ChannelBus) Subscribe(ctx context.Context, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("bus is closed")
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &channelSubscription{
		topic:   topic,
		handler: handler,
		inbox:   make(chan *domain.Message, b.bufferSize),
		cancel:  cancel,
	}
	b.subsByTopic[topic] = append(b.subsByTopic[topic], sub)

	go sub.drain(subCtx)
	return sub, nil
}

func (s *channelSubscription) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.inbox:
			if msg != nil {
				_ = s.handler(ctx, msg)
			}
		}
	}
}

// Ping reports whether the bus accepts traffic.
func (b *ChannelBus) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("bus is closed")
	}
	return nil
}

// Close stops every subscription and rejects further publishes.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.subsByTopic {
		for _, sub := range subs {
			sub.cancel()
			close(sub.inbox)
		}
	}
	b.subsByTopic = make(map[string][]*channelSubscription)
	return nil
}

// Unsubscribe stops the subscription's drain loop. Already-buffered
// messages are discarded.
func (s *channelSubscription) Unsubscribe() error {
	s.cancel()
	return nil
}

func (s *channelSubscription) Topic() string {
	return s.topic
}
