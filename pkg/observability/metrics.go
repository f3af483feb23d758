// Package observability provides Prometheus metrics, HTTP metrics middleware
// and OpenTelemetry tracing for the task engine.
package observability

import "github.com/prometheus/client_golang/prometheus"

// GenerationBuckets spans quick chat completions up to long video renders.
var GenerationBuckets = []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300}

var (
	// RequestsTotal counts HTTP requests by method, route and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tapcanvas_http_requests_total",
			Help: "HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tapcanvas_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: GenerationBuckets,
		},
		[]string{"method", "route"},
	)

	// TasksTotal counts dispatched tasks by vendor, kind and resulting status.
	// Errors raised before a result exists are counted as status "error".
	TasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tapcanvas_tasks_total",
			Help: "Dispatched tasks",
		},
		[]string{"vendor", "kind", "status"},
	)

	// TaskDuration records end-to-end dispatch latency.
	TaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tapcanvas_task_duration_seconds",
			Help:    "Task dispatch duration",
			Buckets: GenerationBuckets,
		},
		[]string{"vendor", "kind"},
	)

	// VendorRequestDuration records vendor HTTP latency by response status code.
	VendorRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tapcanvas_vendor_request_duration_seconds",
			Help:    "Vendor request latency",
			Buckets: GenerationBuckets,
		},
		[]string{"vendor", "status"},
	)

	// CredentialResolutions counts resolved credentials by cascade source.
	CredentialResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tapcanvas_credential_resolutions_total",
			Help: "Credential resolutions by source",
		},
		[]string{"vendor", "source"},
	)

	// SharedTokenFailures counts failures recorded against shared tokens.
	SharedTokenFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tapcanvas_shared_token_failures_total",
			Help: "Failures recorded against shared tokens",
		},
		[]string{"vendor"},
	)

	// PollAttempts counts server-bounded poll requests by outcome.
	PollAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tapcanvas_poll_attempts_total",
			Help: "Server-bounded poll attempts",
		},
		[]string{"vendor", "status"},
	)

	// RehostTotal counts rehost attempts by result (uploaded, kept, skipped).
	RehostTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tapcanvas_rehost_total",
			Help: "Asset rehost attempts",
		},
		[]string{"result"},
	)

	// AssetRecordsTotal counts asset persistence outcomes (created, duplicate, error).
	AssetRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tapcanvas_asset_records_total",
			Help: "Asset record persistence outcomes",
		},
		[]string{"result"},
	)

	// ProgressSubscribers tracks live progress stream subscriptions.
	ProgressSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tapcanvas_progress_subscribers",
			Help: "Live progress subscriptions",
		},
	)

	// ProgressDropped counts snapshots dropped for slow subscribers.
	ProgressDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tapcanvas_progress_dropped_total",
			Help: "Snapshots dropped for slow subscribers",
		},
	)

	// RateLimitRejectedTotal counts requests rejected by the inbound limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tapcanvas_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		TasksTotal,
		TaskDuration,
		VendorRequestDuration,
		CredentialResolutions,
		SharedTokenFailures,
		PollAttempts,
		RehostTotal,
		AssetRecordsTotal,
		ProgressSubscribers,
		ProgressDropped,
		RateLimitRejectedTotal,
	)
}
