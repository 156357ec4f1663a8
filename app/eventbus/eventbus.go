// Package eventbus is the in-process broadcast channel for change
// notifications. Every publish blocks until each current subscriber has
// queued the message; subscribers that cannot keep up are dropped.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"github.com/Black-And-White-Club/ctf-bot/pkg/observability/attr"
	eventbusmetrics "github.com/Black-And-White-Club/ctf-bot/pkg/observability/metrics/eventbus"
)

var (
	// ErrClosed is returned when publishing to or subscribing on a closed bus.
	ErrClosed = errors.New("event bus closed")

	// ErrSlowSubscriber is reported by a subscription that was dropped for
	// not draining its queue within the configured timeout.
	ErrSlowSubscriber = errors.New("subscriber dropped: queue full")
)

// Config tunes per-subscriber buffering.
type Config struct {
	// QueueSize is the number of events buffered per subscriber.
	QueueSize int
	// SubscriberTimeout bounds how long a publish waits on a full queue.
	SubscriberTimeout time.Duration
}

const (
	defaultQueueSize         = 256
	defaultSubscriberTimeout = 2 * time.Second
)

// Bus wraps a non-persistent watermill GoChannel. Subscribers that attach
// after a publish never see it.
type Bus struct {
	pubsub  *gochannel.GoChannel
	cfg     Config
	logger  *slog.Logger
	metrics eventbusmetrics.EventBusMetrics

	mu     sync.Mutex
	subs   map[string]map[string]closer
	closed bool
}

type closer interface {
	Close() error
}

// New creates a bus.
func New(cfg Config, logger *slog.Logger, metrics eventbusmetrics.EventBusMetrics) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = eventbusmetrics.NewNoop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.SubscriberTimeout <= 0 {
		cfg.SubscriberTimeout = defaultSubscriberTimeout
	}

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            0,
		Persistent:                     false,
		BlockPublishUntilSubscriberAck: true,
	}, watermill.NewSlogLogger(logger))

	return &Bus{
		pubsub:  pubsub,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		subs:    make(map[string]map[string]closer),
	}
}

// Publish delivers msgs to every current subscriber of topic, in order.
func (b *Bus) Publish(topic string, msgs ...*message.Message) error {
	if b.isClosed() {
		return ErrClosed
	}

	start := time.Now()
	if err := b.pubsub.Publish(topic, msgs...); err != nil {
		b.metrics.RecordPublishFailure(context.Background(), topic)
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	b.metrics.RecordPublish(context.Background(), topic, time.Since(start))
	return nil
}

// SubscriberCount returns the number of attached subscriptions on topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}

// Close drops every subscriber and shuts the underlying pubsub down.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var all []closer
	for _, subs := range b.subs {
		for _, s := range subs {
			all = append(all, s)
		}
	}
	b.mu.Unlock()

	for _, s := range all {
		_ = s.Close()
	}
	return b.pubsub.Close()
}

func (b *Bus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Bus) register(topic, id string, s closer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[string]closer)
	}
	b.subs[topic][id] = s
	b.metrics.SetSubscribers(topic, len(b.subs[topic]))
	return nil
}

func (b *Bus) unregister(topic, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[topic], id)
	b.metrics.SetSubscribers(topic, len(b.subs[topic]))
}

// Subscribe attaches a subscriber to topic. Messages are decoded with decode
// and buffered up to the configured queue size. The subscription ends when
// ctx is cancelled, Close is called, or the bus drops it.
func Subscribe[T any](ctx context.Context, b *Bus, topic string, decode func(*message.Message) (T, error)) (*Subscription[T], error) {
	if b.isClosed() {
		return nil, ErrClosed
	}

	subCtx, cancel := context.WithCancel(ctx)
	out, err := b.pubsub.Subscribe(subCtx, topic)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	sub := &Subscription[T]{
		id:      uuid.NewString(),
		topic:   topic,
		events:  make(chan T, b.cfg.QueueSize),
		done:    make(chan struct{}),
		cancel:  cancel,
		bus:     b,
		decode:  decode,
		timeout: b.cfg.SubscriberTimeout,
	}
	if err := b.register(topic, sub.id, sub); err != nil {
		cancel()
		return nil, err
	}

	b.logger.DebugContext(ctx, "Subscriber attached",
		attr.String("topic", topic),
		attr.String("subscription_id", sub.id),
	)

	go sub.pump(subCtx, out)
	return sub, nil
}
