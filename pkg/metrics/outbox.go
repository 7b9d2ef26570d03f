package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics records publisher loop behavior.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	batchTime prometheus.Histogram
	backlog   prometheus.Gauge
}

// NewOutboxMetrics registers the outbox publisher metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_published_total",
		Help: "Outbox events successfully handed to Pub/Sub.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_failed_total",
		Help: "Outbox publish attempts that errored.",
	}, []string{"event_type"})
	batchTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_batch_duration_seconds",
		Help:    "Duration of one outbox poll-and-publish cycle.",
		Buckets: prometheus.DefBuckets,
	})
	backlog := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_backlog",
		Help: "Unpublished rows seen in the latest poll.",
	})
	reg.MustRegister(published, failed, batchTime, backlog)
	return &OutboxMetrics{
		published: published,
		failed:    failed,
		batchTime: batchTime,
		backlog:   backlog,
	}
}

// IncPublished increments the published counter for the event type.
func (m *OutboxMetrics) IncPublished(eventType string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncFailed increments the failure counter for the event type.
func (m *OutboxMetrics) IncFailed(eventType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// ObserveBatch records the duration of one publish cycle.
func (m *OutboxMetrics) ObserveBatch(duration time.Duration) {
	if m == nil || m.batchTime == nil {
		return
	}
	m.batchTime.Observe(duration.Seconds())
}

// SetBacklog records the number of unpublished rows found in the latest poll.
func (m *OutboxMetrics) SetBacklog(count int) {
	if m == nil || m.backlog == nil {
		return
	}
	m.backlog.Set(float64(count))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
