package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for publish attempts.
const (
	OutcomePublished = "published"
	OutcomeRejected  = "rejected"
	OutcomeFault     = "fault"
	OutcomeExhausted = "exhausted"
	OutcomeSkipped   = "skipped"
)

// PromMetrics is safe to use as a nil pointer; every method is then a no-op.
type PromMetrics struct {
	enqueued       prometheus.Counter
	cancelled      prometheus.Counter
	attempts       *prometheus.CounterVec
	publishLatency *prometheus.HistogramVec
	converged      *prometheus.CounterVec
}

func NewPromMetrics(reg prometheus.Registerer) *PromMetrics {
	m := &PromMetrics{
		enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "postflow_jobs_enqueued_total",
			Help: "Number of publish jobs enqueued",
		}),
		cancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "postflow_jobs_cancelled_total",
			Help: "Number of not-yet-started publish jobs removed from the queue",
		}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postflow_publish_attempts_total",
			Help: "Publish attempts by platform and outcome",
		}, []string{"platform", "outcome"}),
		publishLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "postflow_publish_latency_seconds",
			Help:    "Latency of platform publish calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"platform"}),
		converged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postflow_posts_converged_total",
			Help: "Post status transitions made by convergence",
		}, []string{"status"}),
	}
	reg.MustRegister(m.enqueued, m.cancelled, m.attempts, m.publishLatency, m.converged)
	return m
}

func (m *PromMetrics) JobsEnqueued(n int) {
	if m == nil {
		return
	}
	m.enqueued.Add(float64(n))
}

func (m *PromMetrics) JobsCancelled(n int) {
	if m == nil {
		return
	}
	m.cancelled.Add(float64(n))
}

func (m *PromMetrics) PublishAttempt(platform, outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(platform, outcome).Inc()
}

func (m *PromMetrics) PublishLatency(platform string, d time.Duration) {
	if m == nil {
		return
	}
	m.publishLatency.WithLabelValues(platform).Observe(d.Seconds())
}

func (m *PromMetrics) PostConverged(status string) {
	if m == nil {
		return
	}
	m.converged.WithLabelValues(status).Inc()
}
