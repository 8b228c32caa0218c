// Package memory records notifications in process memory. The CLI uses it for
// dry runs and tests use it to inspect what would have been sent.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Message is one recorded publish. Data holds the JSON encoding the network
// publishers would have sent.
type Message struct {
	ID    string
	Topic string
	Data  json.RawMessage
}

// Publisher keeps every published payload.
type Publisher struct {
	mu       sync.RWMutex
	messages []Message
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish encodes payload as JSON and records it.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id := fmt.Sprintf("memory-%d", len(p.messages)+1)
	p.messages = append(p.messages, Message{ID: id, Topic: topic, Data: data})
	return id, nil
}

// Messages returns a copy of the recorded messages in publish order.
func (p *Publisher) Messages() []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Message(nil), p.messages...)
}

// Topic returns the messages sent to topic.
func (p *Publisher) Topic(topic string) []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []Message
	for _, m := range p.messages {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}
