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

	batchSubmittedTotal *prometheus.CounterVec
	batchSizeDocuments  *prometheus.HistogramVec
	uploadBytes         *prometheus.HistogramVec
	overridesTotal      *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casefile",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "casefile",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "casefile",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	batchSubmittedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casefile",
			Subsystem: "ingest",
			Name:      "batches_submitted_total",
			Help:      "Total accepted upload batches.",
		},
		[]string{"service"},
	)
	batchSizeDocuments := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "casefile",
			Subsystem: "ingest",
			Name:      "batch_size_documents",
			Help:      "Distribution of documents per accepted batch.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"service"},
	)
	uploadBytes := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "casefile",
			Subsystem: "ingest",
			Name:      "upload_bytes",
			Help:      "Distribution of uploaded document sizes in bytes.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		},
		[]string{"service"},
	)
	overridesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casefile",
			Subsystem: "synthesis",
			Name:      "overrides_applied_total",
			Help:      "Total applied synthesis override patches.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		batchSubmittedTotal,
		batchSizeDocuments,
		uploadBytes,
		overridesTotal,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		batchSubmittedTotal: batchSubmittedTotal,
		batchSizeDocuments:  batchSizeDocuments,
		uploadBytes:         uploadBytes,
		overridesTotal:      overridesTotal,
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
	case strings.HasPrefix(path, "/v1/batches/"):
		return "/v1/batches/{batch_id}"
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	case strings.HasPrefix(path, "/v1/cases/") && strings.HasSuffix(path, "/synthesis/overrides"):
		return "/v1/cases/{case_id}/synthesis/overrides"
	case strings.HasPrefix(path, "/v1/cases/") && strings.HasSuffix(path, "/synthesis"):
		return "/v1/cases/{case_id}/synthesis"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordBatchSubmitted(service string, documentCount int, totalBytes int64) {
	m.batchSubmittedTotal.WithLabelValues(service).Inc()
	m.batchSizeDocuments.WithLabelValues(service).Observe(float64(documentCount))
	if totalBytes > 0 {
		m.uploadBytes.WithLabelValues(service).Observe(float64(totalBytes))
	}
}

func (m *HTTPServerMetrics) RecordOverridesApplied(service string) {
	m.overridesTotal.WithLabelValues(service).Inc()
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
