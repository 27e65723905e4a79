package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/uni-course-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer
// and the import workflow.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	rowsClassified  *prometheus.CounterVec
	confirmOutcomes *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	rowsClassified := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "import_rows_classified_total",
		Help: "Import rows classified, by resulting status",
	}, []string{"status"})

	confirmOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "import_confirm_outcomes_total",
		Help: "Per-row confirm outcomes",
	}, []string{"outcome"})

	registry.MustRegister(requestDuration, requestTotal, rowsClassified, confirmOutcomes)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		rowsClassified:  rowsClassified,
		confirmOutcomes: confirmOutcomes,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records latency and count for a served request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := prometheus.Labels{"method": method, "path": path, "status": strconv.Itoa(status)}
	s.requestDuration.With(labels).Observe(duration.Seconds())
	s.requestTotal.With(labels).Inc()
}

// ObserveRowClassified counts a classification verdict.
func (s *MetricsService) ObserveRowClassified(status models.RowStatus) {
	s.rowsClassified.WithLabelValues(string(status)).Inc()
}

// ObserveConfirmOutcome counts a per-row commit outcome.
func (s *MetricsService) ObserveConfirmOutcome(outcome models.RowOutcome) {
	s.confirmOutcomes.WithLabelValues(string(outcome)).Inc()
}
