package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSConfig selects the server and stream events are written to.
type NATSConfig struct {
	URL           string
	Stream        string
	SubjectPrefix string
}

// NATSPublisher writes transitions to a JetStream stream.
type NATSPublisher struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	prefix string
	logger *slog.Logger
}

// NewNATSPublisher connects and makes sure the stream covering
// <prefix>.> exists.
func NewNATSPublisher(ctx context.Context, cfg NATSConfig, logger *slog.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(cfg.URL, nats.Name("hustlemarket-lifecycle"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{cfg.SubjectPrefix + ".>"},
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", cfg.Stream, err)
	}

	logger.Info("Connected to NATS JetStream",
		"url", cfg.URL,
		"stream", cfg.Stream,
		"prefix", cfg.SubjectPrefix)

	return &NATSPublisher{
		conn:   conn,
		js:     js,
		prefix: cfg.SubjectPrefix,
		logger: logger,
	}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, t Transition) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal transition: %w", err)
	}

	subject := t.Subject(p.prefix)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("Published transition", "subject", subject, "entity_id", t.EntityID)
	return nil
}

// Close drains pending publishes before closing the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
