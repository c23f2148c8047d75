package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce       sync.Once
	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec
	pipelineRunsTotal  *prometheus.CounterVec
	pipelineSeconds    *prometheus.HistogramVec
	submissionsTotal   *prometheus.CounterVec
	submissionRejected *prometheus.CounterVec
	quizPDFBytes       prometheus.Histogram
	eventsPublished    *prometheus.CounterVec
	eventSubscribers   prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codecheck_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "codecheck_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 15.0, 60.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codecheck_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		pipelineRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codecheck_pipeline_runs_total",
			Help: "Assessment pipeline runs by pipeline and result source.",
		}, []string{"pipeline", "source"})

		pipelineSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "codecheck_pipeline_duration_seconds",
			Help:    "End-to-end duration of assessment pipeline runs.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"pipeline"})

		submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codecheck_submissions_ingested_total",
			Help: "Submissions stored by intake source.",
		}, []string{"source"})

		submissionRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codecheck_submissions_rejected_total",
			Help: "Submissions rejected during intake by reason.",
		}, []string{"reason"})

		quizPDFBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "codecheck_quiz_pdf_bytes",
			Help:    "Size of rendered quiz packets.",
			Buckets: prometheus.ExponentialBuckets(4096, 2, 10),
		})

		eventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codecheck_events_published_total",
			Help: "Assessment events published by type.",
		}, []string{"type"})

		eventSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "codecheck_event_subscribers",
			Help: "Connected live event feed subscribers.",
		})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			pipelineRunsTotal, pipelineSeconds,
			submissionsTotal, submissionRejected,
			quizPDFBytes, eventsPublished, eventSubscribers,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// PipelineRuns counts pipeline runs labelled by pipeline and source (provider, fallback, heuristic).
func PipelineRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return pipelineRunsTotal
}

// PipelineDuration exposes the pipeline duration histogram.
func PipelineDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return pipelineSeconds
}

// SubmissionsIngested counts stored submissions by source.
func SubmissionsIngested() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsTotal
}

// SubmissionsRejected counts rejected submissions by reason.
func SubmissionsRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionRejected
}

// QuizPDFSize observes rendered packet sizes.
func QuizPDFSize() prometheus.Histogram {
	RegisterMetrics()
	return quizPDFBytes
}

// EventsPublished counts published assessment events.
func EventsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return eventsPublished
}

// EventSubscribers tracks connected feed clients.
func EventSubscribers() prometheus.Gauge {
	RegisterMetrics()
	return eventSubscribers
}
