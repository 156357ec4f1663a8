// Package scoringrelay forwards committed scoring events to an external
// broker so bots running in other processes can follow the game.
package scoringrelay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Black-And-White-Club/ctf-bot/app/eventbus"
	"github.com/Black-And-White-Club/ctf-bot/pkg/observability/attr"
	eventbusmetrics "github.com/Black-And-White-Club/ctf-bot/pkg/observability/metrics/eventbus"
	scoringtypes "github.com/Black-And-White-Club/ctf-bot/pkg/types/scoring"
)

// DefaultPrefix is used when no subject prefix is configured.
const DefaultPrefix = "ctf"

// Source is the part of the scoring service the relay listens on.
type Source interface {
	Subscribe(ctx context.Context) (*eventbus.Subscription[scoringtypes.DbEvent], error)
	Unsubscribe(sub *eventbus.Subscription[scoringtypes.DbEvent]) error
}

// Relay republishes every event, with flags removed, on
// <prefix>.<kind>.<type>.
type Relay struct {
	source    Source
	publisher message.Publisher
	prefix    string
	logger    *slog.Logger
	metrics   eventbusmetrics.EventBusMetrics
	tracer    trace.Tracer

	// resubscribeDelay is how long Run waits before reattaching after the
	// bus dropped it.
	resubscribeDelay time.Duration
}

// New creates a relay. publisher is owned by the caller.
func New(
	source Source,
	publisher message.Publisher,
	prefix string,
	logger *slog.Logger,
	metrics eventbusmetrics.EventBusMetrics,
	tracer trace.Tracer,
) *Relay {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if metrics == nil {
		metrics = eventbusmetrics.NewNoop()
	}
	return &Relay{
		source:           source,
		publisher:        publisher,
		prefix:           prefix,
		logger:           logger,
		metrics:          metrics,
		tracer:           tracer,
		resubscribeDelay: time.Second,
	}
}

// Subject is the broker subject an event is relayed on.
func (r *Relay) Subject(e scoringtypes.DbEvent) string {
	return fmt.Sprintf("%s.%s.%s", r.prefix, e.Record.Kind(), e.Type)
}

// Run forwards events until ctx ends. If the bus drops the relay for
// falling behind it logs the gap and subscribes again.
func (r *Relay) Run(ctx context.Context) error {
	for {
		sub, err := r.source.Subscribe(ctx)
		if err != nil {
			return fmt.Errorf("relay subscribe: %w", err)
		}
		r.logger.InfoContext(ctx, "Event relay attached",
			attr.String("subscription_id", sub.ID()),
			attr.String("prefix", r.prefix),
		)

		r.forward(ctx, sub)
		_ = r.source.Unsubscribe(sub)

		if ctx.Err() != nil {
			return nil
		}
		err = sub.Err()
		if err == nil {
			r.logger.InfoContext(ctx, "Event bus closed, relay stopping")
			return nil
		}
		if !errors.Is(err, eventbus.ErrSlowSubscriber) {
			return fmt.Errorf("relay subscription ended: %w", err)
		}
		r.logger.WarnContext(ctx, "Event relay fell behind, events were lost",
			attr.String("subscription_id", sub.ID()),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.resubscribeDelay):
		}
	}
}

func (r *Relay) forward(ctx context.Context, sub *eventbus.Subscription[scoringtypes.DbEvent]) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			r.relay(ctx, evt)
		}
	}
}

func (r *Relay) relay(ctx context.Context, evt scoringtypes.DbEvent) {
	subject := r.Subject(evt)
	ctx, span := r.tracer.Start(ctx, "Relay.Publish", trace.WithAttributes(
		attribute.String("subject", subject),
		attribute.Int64("record_id", evt.Record.RecordID()),
	))
	defer span.End()

	msg, err := scoringtypes.NewMessage(evt.Redacted(), attr.CorrelationIDFromContext(ctx))
	if err == nil {
		err = r.publisher.Publish(subject, msg)
	}
	if err != nil {
		span.RecordError(err)
		r.metrics.RecordRelayFailure(ctx, subject)
		r.logger.ErrorContext(ctx, "Failed to relay event",
			attr.String("subject", subject),
			attr.Error(err),
		)
		return
	}
	r.metrics.RecordRelayed(ctx, subject)
}
