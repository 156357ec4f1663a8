package scoringmetrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewPrometheus(reg)
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordFlagSubmission(ctx, "correct")
	metrics.RecordFlagSubmission(ctx, "correct")
	metrics.RecordFlagSubmission(ctx, "wrong_flag")
	metrics.RecordPriceCacheMiss(ctx, "current")
	metrics.RecordLockWait(ctx, 3*time.Millisecond)
	metrics.RecordLockTimeout(ctx)

	m := metrics.(*prometheusMetrics)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.flagSubmissions.WithLabelValues("correct")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.flagSubmissions.WithLabelValues("wrong_flag")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheMisses.WithLabelValues("current")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lockTimeouts))
}

func TestNewPrometheusDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheus(reg)
	require.NoError(t, err)

	_, err = NewPrometheus(reg)
	assert.Error(t, err)
}
