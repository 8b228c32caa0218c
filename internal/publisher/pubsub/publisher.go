// Package pubsub publishes resolution notifications to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"
)

// Publisher sends JSON payloads to Pub/Sub topics. Topic handles are created
// on first use and reused, so batching settings apply across calls.
type Publisher struct {
	client *pubsub.Client
	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// New creates a Publisher over an existing client.
func New(client *pubsub.Client) *Publisher {
	return &Publisher{client: client, topics: make(map[string]*pubsub.Topic)}
}

// Publish marshals the payload to JSON and waits for the server-assigned ID.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("pubsub client is not configured")
	}
	if topic == "" {
		return "", fmt.Errorf("pubsub topic is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	msg := &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"content-type": "application/json"},
	}
	id, err := p.topic(topic).Publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message to %s: %w", topic, err)
	}
	return id, nil
}

func (p *Publisher) topic(id string) *pubsub.Topic {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.topics[id]; ok {
		return t
	}
	t := p.client.Topic(id)
	p.topics[id] = t
	return t
}

// Close flushes pending messages and releases the client.
func (p *Publisher) Close() error {
	p.mu.Lock()
	for _, t := range p.topics {
		t.Stop()
	}
	p.topics = map[string]*pubsub.Topic{}
	p.mu.Unlock()
	if p.client == nil {
		return nil
	}
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
