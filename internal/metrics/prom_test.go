package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPromMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPromMetrics(reg)

	m.JobsEnqueued(3)
	m.JobsCancelled(2)
	m.PublishAttempt("instagram", OutcomePublished)
	m.PublishAttempt("instagram", OutcomePublished)
	m.PublishAttempt("tiktok", OutcomeRejected)
	m.PublishLatency("instagram", 250*time.Millisecond)
	m.PostConverged("published")

	require.InDelta(t, 3, testutil.ToFloat64(m.enqueued), 0.0001)
	require.InDelta(t, 2, testutil.ToFloat64(m.cancelled), 0.0001)
	require.InDelta(t, 2, testutil.ToFloat64(m.attempts.WithLabelValues("instagram", OutcomePublished)), 0.0001)
	require.InDelta(t, 1, testutil.ToFloat64(m.attempts.WithLabelValues("tiktok", OutcomeRejected)), 0.0001)
	require.InDelta(t, 1, testutil.ToFloat64(m.converged.WithLabelValues("published")), 0.0001)
	require.Equal(t, 1, testutil.CollectAndCount(m.publishLatency))
}

func TestNilPromMetricsIsNoop(t *testing.T) {
	var m *PromMetrics

	require.NotPanics(t, func() {
		m.JobsEnqueued(1)
		m.JobsCancelled(1)
		m.PublishAttempt("x", OutcomeFault)
		m.PublishLatency("x", time.Second)
		m.PostConverged("failed")
	})
}
