package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type IndexerMetrics struct {
	registry *prometheus.Registry

	eventTotal    *prometheus.CounterVec
	eventDuration *prometheus.HistogramVec
	eventInFlight prometheus.Gauge
}

func NewIndexerMetrics(service string) *IndexerMetrics {
	registry := prometheus.NewRegistry()

	eventTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tc",
			Subsystem: "indexer",
			Name:      "events_total",
			Help:      "Total processed establishment change events by op and status.",
		},
		[]string{"service", "op", "status"},
	)
	eventDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tc",
			Subsystem: "indexer",
			Name:      "event_duration_seconds",
			Help:      "Change event processing duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	eventInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tc",
			Subsystem: "indexer",
			Name:      "events_in_flight",
			Help:      "Number of change events being processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(eventTotal, eventDuration, eventInFlight)

	return &IndexerMetrics{
		registry:      registry,
		eventTotal:    eventTotal,
		eventDuration: eventDuration,
		eventInFlight: eventInFlight,
	}
}

func (m *IndexerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *IndexerMetrics) StartEvent() {
	m.eventInFlight.Inc()
}

func (m *IndexerMetrics) FinishEvent(service, op string, duration time.Duration, err error) {
	m.eventInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	if op == "" {
		op = "unknown"
	}

	m.eventTotal.WithLabelValues(service, op, status).Inc()
	m.eventDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}
