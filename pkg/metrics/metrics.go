// Package metrics provides the Prometheus collectors shared by the pipeline,
// scheduler, and HTTP control surface.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector registered by the service.
type Metrics struct {
	// Pipeline runs
	RunsTotal       *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
	DocumentsLoaded *prometheus.GaugeVec
	ChunksUpserted  *prometheus.CounterVec

	// Scheduler
	JobsExecutedTotal *prometheus.CounterVec
	JobsFailedTotal   *prometheus.CounterVec
	JobsMissedTotal   *prometheus.CounterVec

	// Batch processor
	BatchDuration  *prometheus.HistogramVec
	BatchItemsDone *prometheus.CounterVec

	// HTTP
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates Metrics registered against the default registerer.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates Metrics registered against a custom registerer,
// used by tests that want an isolated registry.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of pipeline runs by job and status.",
		}, []string{"job", "status"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_run_duration_seconds",
			Help:    "Duration of pipeline runs.",
			Buckets: []float64{.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"job"}),
		DocumentsLoaded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pipeline_documents_loaded",
			Help: "Number of documents loaded in the most recent run.",
		}, []string{"job"}),
		ChunksUpserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_chunks_upserted_total",
			Help: "Total chunks added to the vector store.",
		}, []string{"job"}),
		JobsExecutedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_jobs_executed_total",
			Help: "Total number of job dispatches.",
		}, []string{"job"}),
		JobsFailedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_jobs_failed_total",
			Help: "Total number of failing job runs.",
		}, []string{"job"}),
		JobsMissedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_jobs_missed_total",
			Help: "Total number of dispatches skipped due to the non-overlap guard.",
		}, []string{"job"}),
		BatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batch_processor_batch_duration_seconds",
			Help:    "Duration of individual batches.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		BatchItemsDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_processor_items_total",
			Help: "Total items processed by outcome.",
		}, []string{"operation", "outcome"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests.",
		}, []string{"method", "path", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "path"}),
		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current in-flight HTTP requests.",
		}),
	}

	registerer.MustRegister(
		m.RunsTotal, m.RunDuration, m.DocumentsLoaded, m.ChunksUpserted,
		m.JobsExecutedTotal, m.JobsFailedTotal, m.JobsMissedTotal,
		m.BatchDuration, m.BatchItemsDone,
		m.RequestsTotal, m.RequestDuration, m.RequestsInFlight,
	)

	m.gatherer = prometheus.DefaultGatherer
	if g, ok := registerer.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// Handler exposes the registered collectors in the Prometheus exposition
// format, gathering from whichever registry New/NewWithRegistry used.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps an http.Handler recording request counts/durations.
func (m *Metrics) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		duration := time.Since(start).Seconds()
		path := r.URL.Path
		m.RequestDuration.WithLabelValues(r.Method, path).Observe(duration)
		m.RequestsTotal.WithLabelValues(r.Method, path, http.StatusText(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
