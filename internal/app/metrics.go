package app

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "person_service"

type metrics struct {
	operations      *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	publishFailures *prometheus.CounterVec

	outboxDispatch *prometheus.CounterVec
	outboxPurged   prometheus.Counter
	outboxPending  prometheus.Gauge
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		operations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "operations_total",
			Help:      "Person and contact operations by result.",
		}, []string{"operation", "result"}),
		latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of person and contact operations.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation"}),
		publishFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "event_publish_failures_total",
			Help:      "Events that could not be handed to the publisher.",
		}, []string{"topic"}),
		outboxDispatch: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "outbox_dispatch_total",
			Help:      "Outbox messages dispatched to the broker by result.",
		}, []string{"result"}),
		outboxPurged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "outbox_purged_total",
			Help:      "Published outbox messages removed by the purge job.",
		}),
		outboxPending: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "outbox_pending",
			Help:      "Outbox messages not yet published.",
		}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// observe records the outcome and latency of one operation. errp is read when
// the deferred call runs.
func (m *metrics) observe(operation string, start time.Time, errp *error) {
	var err error
	if errp != nil {
		err = *errp
	}
	m.operations.WithLabelValues(operation, resultLabel(err)).Inc()
	m.latency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
