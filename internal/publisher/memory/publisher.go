// Package memory records job notifications in process. It backs local runs
// without Pub/Sub and doubles as a test spy.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// DefaultRetention is how many recent messages a Publisher keeps.
const DefaultRetention = 256

// Publisher stores the most recent published payloads for inspection.
type Publisher struct {
	mu        sync.RWMutex
	messages  []PublishedMessage
	published int
	retention int
	logger    *zap.Logger
}

// PublishedMessage captures one publish call, including the JSON that a real
// broker would have received.
type PublishedMessage struct {
	ID      string
	Topic   string
	Payload any
	Data    []byte
}

// Option customizes the Publisher.
type Option func(*Publisher)

// WithLogger logs every publish at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithRetention bounds the retained messages; older ones are dropped first.
// Non-positive values keep DefaultRetention.
func WithRetention(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.retention = n
		}
	}
}

// New returns a memory Publisher.
func New(opts ...Option) *Publisher {
	p := &Publisher{logger: zap.NewNop(), retention: DefaultRetention}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish encodes payload like the Pub/Sub publisher would and records it.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	p.mu.Lock()
	p.published++
	id := fmt.Sprintf("memory-%d", p.published)
	if len(p.messages) >= p.retention {
		drop := len(p.messages) - p.retention + 1
		p.messages = append(p.messages[:0], p.messages[drop:]...)
	}
	p.messages = append(p.messages, PublishedMessage{ID: id, Topic: topic, Payload: payload, Data: data})
	p.mu.Unlock()
	p.logger.Debug("notification recorded", zap.String("topic", topic), zap.String("message_id", id))
	return id, nil
}

// Messages returns a copy of the retained publishes, oldest first.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// Close is a no-op so the type can stand in for the Pub/Sub publisher.
func (p *Publisher) Close() error {
	return nil
}
