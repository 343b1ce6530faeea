package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chat_relay"

// Submission outcomes.
const (
	OutcomeAcknowledged = "acknowledged"
	OutcomeRejected     = "rejected"
	OutcomeFailed       = "failed"
)

// Fan-out delivery results, one per sink and event.
const (
	DeliveryDelivered = "delivered"
	DeliveryRetried   = "retried"
	DeliveryDropped   = "dropped"
	DeliveryClosed    = "closed"
)

// Metrics owns its registry so several instances (one per test) never collide
// on the global default registerer.
type Metrics struct {
	registry *prometheus.Registry

	Connections     prometheus.Gauge
	Submissions     *prometheus.CounterVec
	Deliveries      *prometheus.CounterVec
	QueueDepth      prometheus.Gauge
	QueueDropped    prometheus.Counter
	TypingActive    prometheus.Gauge
	WorkerRestarts  *prometheus.CounterVec
	ProcessRSSBytes prometheus.Gauge
	ProcessCPU      prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Live registered connections.",
		}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Message submissions by outcome.",
		}, []string{"outcome"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_deliveries_total",
			Help:      "Per connection event deliveries by result.",
		}, []string{"result"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fanout_queue_depth",
			Help:      "Events waiting in the fan-out queue.",
		}),
		QueueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_queue_dropped_total",
			Help:      "Events rejected because the fan-out queue was full.",
		}),
		TypingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "typing_indicators",
			Help:      "Typing indicators currently armed.",
		}),
		WorkerRestarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_restarts_total",
			Help:      "Supervised worker restarts after an error or a panic.",
		}, []string{"worker"}),
		ProcessRSSBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_rss_bytes",
			Help:      "Resident memory of the relay process.",
		}),
		ProcessCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_cpu_percent",
			Help:      "CPU usage of the relay process.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.Connections,
		m.Submissions,
		m.Deliveries,
		m.QueueDepth,
		m.QueueDropped,
		m.TypingActive,
		m.WorkerRestarts,
		m.ProcessRSSBytes,
		m.ProcessCPU,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
