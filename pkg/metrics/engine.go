package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultMissing = "missing"

	RoleCreator     = "creator"
	RoleContributor = "contributor"
)

// EngineMetrics counts the side effects issued by the place engines. A nil
// receiver is a no-op.
type EngineMetrics struct {
	duration   *prometheus.HistogramVec
	toggles    *prometheus.CounterVec
	increments *prometheus.CounterVec
	blobs      *prometheus.CounterVec
	uploads    *prometheus.CounterVec
}

// NewEngineMetrics registers the engine metrics on the provided registerer.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "engine_operation_duration_seconds",
		Help:    "Duration of place engine operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	toggles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "membership_toggles_total",
		Help: "Membership toggles applied, by direction.",
	}, []string{"action"})
	increments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "score_increments_total",
		Help: "Score increments issued during settlement.",
	}, []string{"role", "result"})
	blobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "blob_deletes_total",
		Help: "Blob deletions attempted while purging places.",
	}, []string{"result"})
	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "image_uploads_total",
		Help: "Image uploads attempted while creating places.",
	}, []string{"result"})
	reg.MustRegister(duration, toggles, increments, blobs, uploads)
	return &EngineMetrics{
		duration:   duration,
		toggles:    toggles,
		increments: increments,
		blobs:      blobs,
		uploads:    uploads,
	}
}

// ObserveDuration records how long the named operation took.
func (m *EngineMetrics) ObserveDuration(operation string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

func (m *EngineMetrics) IncToggle(action string) {
	if m == nil || m.toggles == nil {
		return
	}
	m.toggles.WithLabelValues(normalizeLabel(action)).Inc()
}

func (m *EngineMetrics) IncScoreIncrement(role, result string) {
	if m == nil || m.increments == nil {
		return
	}
	m.increments.WithLabelValues(normalizeLabel(role), normalizeLabel(result)).Inc()
}

func (m *EngineMetrics) IncBlobDelete(result string) {
	if m == nil || m.blobs == nil {
		return
	}
	m.blobs.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *EngineMetrics) IncImageUpload(result string) {
	if m == nil || m.uploads == nil {
		return
	}
	m.uploads.WithLabelValues(normalizeLabel(result)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
