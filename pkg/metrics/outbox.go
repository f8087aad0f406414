package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	DispatchPublished    = "published"
	DispatchRetry        = "retry"
	DispatchDeadLettered = "dead_lettered"
)

// OutboxMetrics counts outbox rows by dispatch outcome.
type OutboxMetrics struct {
	dispatched *prometheus.CounterVec
	batches    prometheus.Counter
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	dispatched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_dispatched_total",
		Help: "Outbox rows handled by the publisher, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	batches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_batch_errors_total",
		Help: "Publisher batches rolled back because of a storage error.",
	})
	reg.MustRegister(dispatched, batches)
	return &OutboxMetrics{dispatched: dispatched, batches: batches}
}

func (m *OutboxMetrics) IncDispatched(eventType, outcome string) {
	if m == nil || m.dispatched == nil {
		return
	}
	m.dispatched.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func (m *OutboxMetrics) IncBatchError() {
	if m == nil || m.batches == nil {
		return
	}
	m.batches.Inc()
}
