package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Email task results.
const (
	ResultSent    = "sent"
	ResultFailed  = "failed"
	ResultDropped = "dropped"
)

// EmailMetrics records outcomes of the best-effort email queue.
// A nil *EmailMetrics is valid and records nothing.
type EmailMetrics struct {
	tasks    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	depth    prometheus.Gauge
}

// NewEmailMetrics registers the email queue metrics on the provided registerer.
func NewEmailMetrics(reg prometheus.Registerer) *EmailMetrics {
	if reg == nil {
		return &EmailMetrics{}
	}
	tasks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "email_tasks_total",
		Help: "Email tasks by kind and result (sent, failed, dropped).",
	}, []string{"kind", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "email_send_duration_seconds",
		Help:    "Time spent handing an email to the provider.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	depth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "email_queue_depth",
		Help: "Email tasks waiting for a worker.",
	})
	reg.MustRegister(tasks, duration, depth)
	return &EmailMetrics{tasks: tasks, duration: duration, depth: depth}
}

// IncResult counts one finished, failed or dropped task.
func (m *EmailMetrics) IncResult(kind, result string) {
	if m == nil || m.tasks == nil {
		return
	}
	m.tasks.WithLabelValues(normalizeLabel(kind), result).Inc()
}

// ObserveSend records the provider round trip for a task.
func (m *EmailMetrics) ObserveSend(kind string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(kind)).Observe(d.Seconds())
}

// SetDepth publishes the current queue length.
func (m *EmailMetrics) SetDepth(n int) {
	if m == nil || m.depth == nil {
		return
	}
	m.depth.Set(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// Tasks exposes the task counter for assertions.
func (m *EmailMetrics) Tasks() *prometheus.CounterVec {
	if m == nil {
		return nil
	}
	return m.tasks
}
