package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSConfig configures the outbound NATS publisher.
type NATSConfig struct {
	URL string
	// Stream, when set, is provisioned as a JetStream stream covering
	// Subjects and messages are published through JetStream.
	Stream   string
	Subjects []string
}

// NewNATSPublisher creates a watermill publisher for cfg. Subjects are taken
// verbatim from the topic passed to Publish.
func NewNATSPublisher(ctx context.Context, cfg NATSConfig, logger *slog.Logger) (message.Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats url is required")
	}

	options := []nc.Option{
		nc.RetryOnFailedConnect(true),
		nc.Timeout(30 * time.Second),
		nc.ReconnectWait(1 * time.Second),
	}

	jsConfig := nats.JetStreamConfig{Disabled: true}
	if cfg.Stream != "" {
		if err := ensureStream(ctx, cfg, logger); err != nil {
			return nil, err
		}
		jsConfig = nats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false,
		}
	}

	publisher, err := nats.NewPublisher(
		nats.PublisherConfig{
			URL:               cfg.URL,
			NatsOptions:       options,
			Marshaler:         &nats.NATSMarshaler{},
			JetStream:         jsConfig,
			SubjectCalculator: nats.DefaultSubjectCalculator,
		},
		watermill.NewSlogLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create NATS publisher: %w", err)
	}
	return publisher, nil
}

// ensureStream creates the stream, or adds any missing subjects to it.
func ensureStream(ctx context.Context, cfg NATSConfig, logger *slog.Logger) error {
	conn, err := nc.Connect(cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer conn.Close()

	js, err := jetstream.New(conn)
	if err != nil {
		return fmt.Errorf("failed to initialize JetStream: %w", err)
	}

	stream, err := js.Stream(ctx, cfg.Stream)
	if errors.Is(err, jetstream.ErrStreamNotFound) {
		if _, err := js.CreateStream(ctx, jetstream.StreamConfig{
			Name:     cfg.Stream,
			Subjects: cfg.Subjects,
		}); err != nil {
			return fmt.Errorf("failed to create stream %s: %w", cfg.Stream, err)
		}
		logger.Info("Created JetStream stream", slog.String("stream", cfg.Stream), slog.Any("subjects", cfg.Subjects))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check stream %s: %w", cfg.Stream, err)
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to get stream info: %w", err)
	}
	missing := false
	for _, subject := range cfg.Subjects {
		if !slices.Contains(info.Config.Subjects, subject) {
			info.Config.Subjects = append(info.Config.Subjects, subject)
			missing = true
		}
	}
	if missing {
		if _, err := js.UpdateStream(ctx, info.Config); err != nil {
			return fmt.Errorf("failed to update stream subjects: %w", err)
		}
		logger.Info("Updated JetStream stream subjects", slog.String("stream", cfg.Stream))
	}
	return nil
}
