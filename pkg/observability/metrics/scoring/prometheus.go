package scoringmetrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ctfbot"

type prometheusMetrics struct {
	operationAttempts  *prometheus.CounterVec
	operationSuccess   *prometheus.CounterVec
	operationFailures  *prometheus.CounterVec
	operationDuration  *prometheus.HistogramVec
	flagSubmissions    *prometheus.CounterVec
	lockWait           prometheus.Histogram
	lockTimeouts       prometheus.Counter
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	cacheInvalidations prometheus.Counter
}

// NewPrometheus registers the scoring collectors on reg.
func NewPrometheus(reg prometheus.Registerer) (ScoringMetrics, error) {
	m := &prometheusMetrics{
		operationAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scoring", Name: "operation_attempts_total",
			Help: "Scoring operations started.",
		}, []string{"operation", "service"}),
		operationSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scoring", Name: "operation_success_total",
			Help: "Scoring operations that completed without an infrastructure error.",
		}, []string{"operation", "service"}),
		operationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scoring", Name: "operation_failures_total",
			Help: "Scoring operations that failed with an infrastructure error or panic.",
		}, []string{"operation", "service"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "scoring", Name: "operation_duration_seconds",
			Help:    "Scoring operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "service"}),
		flagSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scoring", Name: "flag_submissions_total",
			Help: "Flag submissions by outcome.",
		}, []string{"outcome"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "scoring", Name: "submission_lock_wait_seconds",
			Help:    "Time spent waiting for the submission lock.",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
		lockTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scoring", Name: "submission_lock_timeouts_total",
			Help: "Submissions rejected because the lock was not acquired in time.",
		}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "price_cache", Name: "hits_total",
			Help: "Price cache hits.",
		}, []string{"cache"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "price_cache", Name: "misses_total",
			Help: "Price cache misses.",
		}, []string{"cache"}),
		cacheInvalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "price_cache", Name: "invalidations_total",
			Help: "Full price cache invalidations.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.operationAttempts, m.operationSuccess, m.operationFailures, m.operationDuration,
		m.flagSubmissions, m.lockWait, m.lockTimeouts,
		m.cacheHits, m.cacheMisses, m.cacheInvalidations,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *prometheusMetrics) RecordOperationAttempt(_ context.Context, operation, service string) {
	m.operationAttempts.WithLabelValues(operation, service).Inc()
}

func (m *prometheusMetrics) RecordOperationSuccess(_ context.Context, operation, service string) {
	m.operationSuccess.WithLabelValues(operation, service).Inc()
}

func (m *prometheusMetrics) RecordOperationFailure(_ context.Context, operation, service string) {
	m.operationFailures.WithLabelValues(operation, service).Inc()
}

func (m *prometheusMetrics) RecordOperationDuration(_ context.Context, operation, service string, duration time.Duration) {
	m.operationDuration.WithLabelValues(operation, service).Observe(duration.Seconds())
}

func (m *prometheusMetrics) RecordFlagSubmission(_ context.Context, outcome string) {
	m.flagSubmissions.WithLabelValues(outcome).Inc()
}

func (m *prometheusMetrics) RecordLockWait(_ context.Context, duration time.Duration) {
	m.lockWait.Observe(duration.Seconds())
}

func (m *prometheusMetrics) RecordLockTimeout(context.Context) {
	m.lockTimeouts.Inc()
}

func (m *prometheusMetrics) RecordPriceCacheHit(_ context.Context, cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

func (m *prometheusMetrics) RecordPriceCacheMiss(_ context.Context, cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

func (m *prometheusMetrics) RecordPriceCacheInvalidation(context.Context) {
	m.cacheInvalidations.Inc()
}
