package eventbusmetrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EventBusMetrics records in-process bus and relay activity.
type EventBusMetrics interface {
	RecordPublish(ctx context.Context, topic string, duration time.Duration)
	RecordPublishFailure(ctx context.Context, topic string)
	RecordSubscriberDropped(ctx context.Context, topic string)
	SetSubscribers(topic string, count int)
	RecordRelayed(ctx context.Context, subject string)
	RecordRelayFailure(ctx context.Context, subject string)
}

type noop struct{}

// NewNoop returns metrics that discard everything.
func NewNoop() EventBusMetrics { return noop{} }

func (noop) RecordPublish(context.Context, string, time.Duration) {}
func (noop) RecordPublishFailure(context.Context, string)         {}
func (noop) RecordSubscriberDropped(context.Context, string)      {}
func (noop) SetSubscribers(string, int)                           {}
func (noop) RecordRelayed(context.Context, string)                {}
func (noop) RecordRelayFailure(context.Context, string)           {}

type prometheusMetrics struct {
	published       *prometheus.HistogramVec
	publishFailures *prometheus.CounterVec
	dropped         *prometheus.CounterVec
	subscribers     *prometheus.GaugeVec
	relayed         *prometheus.CounterVec
	relayFailures   *prometheus.CounterVec
}

// NewPrometheus registers the event bus collectors on reg.
func NewPrometheus(reg prometheus.Registerer) (EventBusMetrics, error) {
	m := &prometheusMetrics{
		published: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ctfbot", Subsystem: "eventbus", Name: "publish_duration_seconds",
			Help:    "Time until every subscriber accepted a published event.",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"topic"}),
		publishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ctfbot", Subsystem: "eventbus", Name: "publish_failures_total",
			Help: "Events that could not be published.",
		}, []string{"topic"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ctfbot", Subsystem: "eventbus", Name: "subscribers_dropped_total",
			Help: "Subscribers dropped for not draining their queue in time.",
		}, []string{"topic"}),
		subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ctfbot", Subsystem: "eventbus", Name: "subscribers",
			Help: "Currently attached subscribers.",
		}, []string{"topic"}),
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ctfbot", Subsystem: "relay", Name: "forwarded_total",
			Help: "Events forwarded to NATS.",
		}, []string{"subject"}),
		relayFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ctfbot", Subsystem: "relay", Name: "failures_total",
			Help: "Events that could not be forwarded to NATS.",
		}, []string{"subject"}),
	}
	for _, c := range []prometheus.Collector{m.published, m.publishFailures, m.dropped, m.subscribers, m.relayed, m.relayFailures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *prometheusMetrics) RecordPublish(_ context.Context, topic string, duration time.Duration) {
	m.published.WithLabelValues(topic).Observe(duration.Seconds())
}

func (m *prometheusMetrics) RecordPublishFailure(_ context.Context, topic string) {
	m.publishFailures.WithLabelValues(topic).Inc()
}

func (m *prometheusMetrics) RecordSubscriberDropped(_ context.Context, topic string) {
	m.dropped.WithLabelValues(topic).Inc()
}

func (m *prometheusMetrics) SetSubscribers(topic string, count int) {
	m.subscribers.WithLabelValues(topic).Set(float64(count))
}

func (m *prometheusMetrics) RecordRelayed(_ context.Context, subject string) {
	m.relayed.WithLabelValues(subject).Inc()
}

func (m *prometheusMetrics) RecordRelayFailure(_ context.Context, subject string) {
	m.relayFailures.WithLabelValues(subject).Inc()
}
