package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsRegistered(t *testing.T) {
	RequestsTotal.WithLabelValues("GET", "/tasks", "2xx").Add(0)
	RequestDuration.WithLabelValues("GET", "/tasks").Observe(0)
	TasksTotal.WithLabelValues("qwen", "text_to_image", "succeeded").Add(0)
	TaskDuration.WithLabelValues("qwen", "text_to_image").Observe(0)
	VendorRequestDuration.WithLabelValues("qwen", "200").Observe(0)
	CredentialResolutions.WithLabelValues("qwen", "own_token").Add(0)
	SharedTokenFailures.WithLabelValues("qwen").Add(0)
	PollAttempts.WithLabelValues("qwen", "running").Add(0)
	RehostTotal.WithLabelValues("uploaded").Add(0)
	AssetRecordsTotal.WithLabelValues("created").Add(0)
	RateLimitRejectedTotal.WithLabelValues("default").Add(0)

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}

	expected := map[string]bool{
		"tapcanvas_http_requests_total":             false,
		"tapcanvas_http_request_duration_seconds":   false,
		"tapcanvas_tasks_total":                     false,
		"tapcanvas_task_duration_seconds":           false,
		"tapcanvas_vendor_request_duration_seconds": false,
		"tapcanvas_credential_resolutions_total":    false,
		"tapcanvas_shared_token_failures_total":     false,
		"tapcanvas_poll_attempts_total":             false,
		"tapcanvas_rehost_total":                    false,
		"tapcanvas_asset_records_total":             false,
		"tapcanvas_progress_subscribers":            false,
		"tapcanvas_progress_dropped_total":          false,
		"tapcanvas_ratelimit_rejected_total":        false,
	}
	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("metric %q not found in default registry", name)
		}
	}
}

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		path, want string
	}{
		{"/tasks", "/tasks"},
		{"/tasks/veo/result", "/tasks/veo/result"},
		{"/tasks/12345", "other"},
		{"/", "other"},
	}
	for _, tt := range tests {
		if got := RouteLabel(tt.path); got != tt.want {
			t.Errorf("RouteLabel(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestMiddlewareRecordsRequest(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		status     int
		wantRoute  string
		wantStatus string
	}{
		{"ok", http.MethodPost, "/tasks", http.StatusOK, "/tasks", "2xx"},
		{"client error", http.MethodPost, "/tasks", http.StatusBadRequest, "/tasks", "4xx"},
		{"unknown route", http.MethodGet, "/nope", http.StatusNotFound, "other", "4xx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := counterValue(t, RequestsTotal, tt.method, tt.wantRoute, tt.wantStatus)
			beforeHist := histogramCount(t, RequestDuration, tt.method, tt.wantRoute)

			handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tt.method, tt.path, nil))

			if got := counterValue(t, RequestsTotal, tt.method, tt.wantRoute, tt.wantStatus) - before; got != 1 {
				t.Errorf("request count delta = %f, want 1", got)
			}
			if got := histogramCount(t, RequestDuration, tt.method, tt.wantRoute) - beforeHist; got != 1 {
				t.Errorf("histogram count delta = %d, want 1", got)
			}
		})
	}
}

func TestStatusWriterFlush(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}
	sw.Flush()
	if !rec.Flushed {
		t.Error("expected underlying writer to be flushed")
	}
	if sw.Unwrap() != rec {
		t.Error("Unwrap() should return the wrapped writer")
	}
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{Exporter: "none"})
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	ctx, span := StartSpan(context.Background(), "test")
	if ctx == nil {
		t.Fatal("StartSpan returned nil context")
	}
	EndSpan(span, errors.New("boom"))
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestInitTracingUnknownExporter(t *testing.T) {
	if _, err := InitTracing(context.Background(), TracingConfig{Exporter: "carrier-pigeon"}); err == nil {
		t.Error("InitTracing with unknown exporter should fail")
	}
}

func counterValue(t *testing.T, cv *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	c, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting counter metric: %v", err)
	}
	if err := c.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing counter metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func histogramCount(t *testing.T, hv *prometheus.HistogramVec, labels ...string) uint64 {
	t.Helper()
	m := &dto.Metric{}
	obs, err := hv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting histogram metric: %v", err)
	}
	if err := obs.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing histogram metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}
