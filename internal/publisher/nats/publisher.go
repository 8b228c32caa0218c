// Package nats publishes resolution notifications to NATS JetStream.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/JakeFAU/logo-resolver/internal/logging"
)

// Stream is the JetStream stream that captures notification subjects.
type Stream interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher sends JSON payloads to JetStream subjects and returns the stream
// sequence as the message ID.
type Publisher struct {
	js    Stream
	close func()
}

// Connect dials url and binds a JetStream publisher.
func Connect(url string, logger *zap.Logger) (*Publisher, error) {
	log := logging.OrNop(logger)
	nc, err := nats.Connect(url,
		nats.Name("logo-resolver"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Warn("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Error("nats disconnected", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}
	return &Publisher{js: js, close: nc.Close}, nil
}

// New wraps an existing JetStream handle.
func New(js Stream) *Publisher {
	return &Publisher{js: js}
}

// Publish marshals payload and waits for the stream ack.
func (p *Publisher) Publish(ctx context.Context, subject string, payload any) (string, error) {
	if p.js == nil {
		return "", fmt.Errorf("jetstream is not configured")
	}
	if subject == "" {
		return "", fmt.Errorf("nats subject is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	ack, err := p.js.Publish(ctx, subject, data)
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", subject, err)
	}
	return ack.Stream + ":" + strconv.FormatUint(ack.Sequence, 10), nil
}

// Close drops the underlying connection when Connect created it.
func (p *Publisher) Close() error {
	if p.close != nil {
		p.close()
	}
	return nil
}
