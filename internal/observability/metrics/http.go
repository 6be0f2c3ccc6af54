package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queryTotal        *prometheus.CounterVec
	queryConfidence   *prometheus.HistogramVec
	retrievalResults  *prometheus.HistogramVec
	retrievalDuration *prometheus.HistogramVec
	chatTurnsTotal    *prometheus.CounterVec
	activeSessions    prometheus.Gauge
	catalogOpsTotal   *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tc",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tc",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tc",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tc",
			Subsystem: "retrieval",
			Name:      "queries_total",
			Help:      "Total processed queries by intent, strategy and outcome.",
		},
		[]string{"service", "intent", "strategy", "outcome"},
	)
	queryConfidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tc",
			Subsystem: "retrieval",
			Name:      "response_confidence",
			Help:      "Distribution of response confidence per query.",
			Buckets:   []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"service"},
	)
	retrievalResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tc",
			Subsystem: "retrieval",
			Name:      "results",
			Help:      "Distribution of result counts per query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "strategy"},
	)
	retrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tc",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Query pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "strategy"},
	)
	chatTurnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tc",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Total conversation turns by resulting state.",
		},
		[]string{"service", "state"},
	)
	activeSessions := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tc",
			Subsystem: "conversation",
			Name:      "active_sessions",
			Help:      "Number of live conversation sessions.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	catalogOpsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tc",
			Subsystem: "catalog",
			Name:      "operations_total",
			Help:      "Total establishment catalog writes by operation and status.",
		},
		[]string{"service", "op", "status"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		queryTotal,
		queryConfidence,
		retrievalResults,
		retrievalDuration,
		chatTurnsTotal,
		activeSessions,
		catalogOpsTotal,
	)

	return &HTTPServerMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		queryTotal:        queryTotal,
		queryConfidence:   queryConfidence,
		retrievalResults:  retrievalResults,
		retrievalDuration: retrievalDuration,
		chatTurnsTotal:    chatTurnsTotal,
		activeSessions:    activeSessions,
		catalogOpsTotal:   catalogOpsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/sessions/"):
		return "/v1/sessions/{session_id}"
	case strings.HasPrefix(path, "/v1/establishments/"):
		return "/v1/establishments/{establishment_id}"
	default:
		return path
	}
}

// RecordQuery tracks one pipeline run end to end.
func (m *HTTPServerMetrics) RecordQuery(service, intent, strategy string, success bool, resultCount int, confidence float64, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "empty"
	}
	m.queryTotal.WithLabelValues(service, orUnknown(intent), orUnknown(strategy), outcome).Inc()
	m.queryConfidence.WithLabelValues(service).Observe(confidence)
	m.retrievalResults.WithLabelValues(service, orUnknown(strategy)).Observe(float64(resultCount))
	m.retrievalDuration.WithLabelValues(service, orUnknown(strategy)).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordChatTurn(service, state string) {
	m.chatTurnsTotal.WithLabelValues(service, orUnknown(state)).Inc()
}

func (m *HTTPServerMetrics) SetActiveSessions(count int) {
	m.activeSessions.Set(float64(count))
}

func (m *HTTPServerMetrics) RecordCatalogOp(service, op string, ok bool) {
	status := "success"
	if !ok {
		status = "error"
	}
	m.catalogOpsTotal.WithLabelValues(service, orUnknown(op), status).Inc()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
