package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/classroom-snapshot-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic and
// snapshot imports.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	importTotal     *prometheus.CounterVec
	importDuration  prometheus.Histogram
	batchTotal      *prometheus.CounterVec
	lockWait        prometheus.Histogram
	dbQueryDuration *prometheus.HistogramVec

	requestCount         uint64
	requestDurationTotal uint64
	importCount          uint64
	failedBatchCount     uint64
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

	importTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snapshot_imports_total",
		Help: "Snapshot imports by outcome",
	}, []string{"status"})

	importDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "snapshot_import_duration_seconds",
		Help:    "End-to-end duration of snapshot imports",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	batchTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snapshot_classroom_batches_total",
		Help: "Classroom write batches by result",
	}, []string{"result"})

	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "snapshot_lock_wait_seconds",
		Help:    "Time spent waiting for the per-teacher import lock",
		Buckets: prometheus.DefBuckets,
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, importTotal, importDuration, batchTotal, lockWait, dbQueryDuration, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		importTotal:     importTotal,
		importDuration:  importDuration,
		batchTotal:      batchTotal,
		lockWait:        lockWait,
		dbQueryDuration: dbQueryDuration,
	}
}

// Registry exposes the underlying registry, mostly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveImport records one finished import.
func (m *MetricsService) ObserveImport(status models.ImportStatus, duration time.Duration) {
	if m == nil {
		return
	}
	m.importTotal.WithLabelValues(string(status)).Inc()
	m.importDuration.Observe(duration.Seconds())
	atomic.AddUint64(&m.importCount, 1)
}

// ObserveClassroomBatch counts one classroom batch as committed or failed.
func (m *MetricsService) ObserveClassroomBatch(committed bool) {
	if m == nil {
		return
	}
	result := "committed"
	if !committed {
		result = "failed"
		atomic.AddUint64(&m.failedBatchCount, 1)
	}
	m.batchTotal.WithLabelValues(result).Inc()
}

// ObserveLockWait records how long an import waited for its tenant lock.
func (m *MetricsService) ObserveLockWait(duration time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// Snapshot returns aggregated counters for the JSON metrics endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		ImportsTotal:             atomic.LoadUint64(&m.importCount),
		FailedBatchesTotal:       atomic.LoadUint64(&m.failedBatchCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
