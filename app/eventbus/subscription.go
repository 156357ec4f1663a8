package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/Black-And-White-Club/ctf-bot/pkg/observability/attr"
)

// Subscription is one subscriber's handle on the bus.
type Subscription[T any] struct {
	id      string
	topic   string
	events  chan T
	done    chan struct{}
	cancel  context.CancelFunc
	bus     *Bus
	decode  func(*message.Message) (T, error)
	timeout time.Duration

	mu  sync.Mutex
	err error
}

// ID identifies the subscription.
func (s *Subscription[T]) ID() string { return s.id }

// Events yields decoded messages in publish order. It is closed when the
// subscription ends.
func (s *Subscription[T]) Events() <-chan T { return s.events }

// Done is closed once the subscription has fully stopped.
func (s *Subscription[T]) Done() <-chan struct{} { return s.done }

// Err reports why the subscription ended, or nil if it was closed normally
// or is still running.
func (s *Subscription[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close detaches the subscription and waits for it to stop.
func (s *Subscription[T]) Close() error {
	s.cancel()
	<-s.done
	return nil
}

func (s *Subscription[T]) pump(ctx context.Context, out <-chan *message.Message) {
	defer close(s.done)
	defer close(s.events)
	defer s.bus.unregister(s.topic, s.id)

	for {
		select {
		case <-ctx.Done():
			s.drain(out)
			return
		case msg, ok := <-out:
			if !ok {
				return
			}
			if !s.deliver(ctx, msg) {
				s.cancel()
				s.drain(out)
				return
			}
		}
	}
}

// deliver enqueues msg and acks it. It returns false when the subscription
// must stop.
func (s *Subscription[T]) deliver(ctx context.Context, msg *message.Message) bool {
	defer msg.Ack()

	v, err := s.decode(msg)
	if err != nil {
		s.bus.logger.Warn("Dropping undecodable message",
			attr.String("topic", s.topic),
			attr.String("subscription_id", s.id),
			attr.String("message_uuid", msg.UUID),
			attr.Error(err),
		)
		return true
	}

	select {
	case s.events <- v:
		return true
	default:
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case s.events <- v:
		return true
	case <-ctx.Done():
		return false
	case <-timer.C:
		s.mu.Lock()
		s.err = ErrSlowSubscriber
		s.mu.Unlock()
		s.bus.metrics.RecordSubscriberDropped(context.Background(), s.topic)
		s.bus.logger.Warn("Dropping slow subscriber",
			attr.String("topic", s.topic),
			attr.String("subscription_id", s.id),
			attr.Int("queue_size", cap(s.events)),
		)
		return false
	}
}

// drain acks whatever the pubsub still hands over until it closes the channel.
func (s *Subscription[T]) drain(out <-chan *message.Message) {
	for msg := range out {
		msg.Ack()
	}
}
