package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	attemptsProcessedTotal *prometheus.CounterVec
	pipelineStageSeconds   *prometheus.HistogramVec
	awardsTotal            *prometheus.CounterVec
	pointsAwardedTotal     prometheus.Counter
	alertsRaisedTotal      *prometheus.CounterVec
	enrichmentFailures     *prometheus.CounterVec
	staleAttemptsSwept     prometheus.Counter
	httpRequestsTotal      *prometheus.CounterVec
	httpRequestSeconds     *prometheus.HistogramVec
	httpErrorsTotal        *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the core services.
func RegisterMetrics() {
	registerOnce.Do(func() {
		attemptsProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attempts_processed_total",
			Help: "Total number of attempts that reached a terminal state.",
		}, []string{"outcome", "stage"})

		pipelineStageSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_stage_seconds",
			Help:    "Latency distribution per assessment pipeline stage.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		}, []string{"stage"})

		awardsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamification_awards_total",
			Help: "Total number of gamification awards applied.",
		}, []string{"kind"})

		pointsAwardedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamification_points_awarded_total",
			Help: "Sum of all points handed out by the rules engine.",
		})

		alertsRaisedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alerts_raised_total",
			Help: "Total number of alerts created by the analyzer.",
		}, []string{"type", "severity"})

		enrichmentFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enrichment_failures_total",
			Help: "Profile or gamification enrichment failures on completed attempts.",
		}, []string{"stage"})

		staleAttemptsSwept = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stale_attempts_swept_total",
			Help: "Attempts abandoned in processing and failed by the reconciliation sweep.",
		})

		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"method", "route", "status"})

		httpRequestSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_seconds",
			Help:    "HTTP request latency distribution.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "HTTP responses with a 4xx or 5xx status code.",
		}, []string{"method", "route", "status"})

		prometheus.MustRegister(
			attemptsProcessedTotal,
			pipelineStageSeconds,
			awardsTotal,
			pointsAwardedTotal,
			alertsRaisedTotal,
			enrichmentFailures,
			staleAttemptsSwept,
			httpRequestsTotal,
			httpRequestSeconds,
			httpErrorsTotal,
		)
	})
}

// AttemptsProcessed exposes the terminal-attempt counter.
func AttemptsProcessed() *prometheus.CounterVec {
	RegisterMetrics()
	return attemptsProcessedTotal
}

// PipelineStageLatency exposes the per-stage latency histogram.
func PipelineStageLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return pipelineStageSeconds
}

// Awards exposes the award counter.
func Awards() *prometheus.CounterVec {
	RegisterMetrics()
	return awardsTotal
}

// PointsAwarded exposes the points counter.
func PointsAwarded() prometheus.Counter {
	RegisterMetrics()
	return pointsAwardedTotal
}

// AlertsRaised exposes the alert creation counter.
func AlertsRaised() *prometheus.CounterVec {
	RegisterMetrics()
	return alertsRaisedTotal
}

// EnrichmentFailures exposes the enrichment failure counter.
func EnrichmentFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return enrichmentFailures
}

// StaleAttemptsSwept exposes the reconciliation sweep counter.
func StaleAttemptsSwept() prometheus.Counter {
	RegisterMetrics()
	return staleAttemptsSwept
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpRequestSeconds
}

// HTTPErrors exposes the error response counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}
