// Package http serves the task API over HTTP with net/http 1.22 routing
// patterns and a server-sent-events progress stream.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mdsxbm/tapcanvas/pkg/api"
	"github.com/mdsxbm/tapcanvas/pkg/auth"
	"github.com/mdsxbm/tapcanvas/pkg/transport"
)

// Adapter serves the task endpoints.
type Adapter struct {
	executor transport.TaskExecutor
	progress transport.ProgressSource // nil disables /tasks/stream and /tasks/pending
	mux      *http.ServeMux
	config   Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	Addr            string
	MaxBodySize     int64
	ShutdownTimeout int // seconds

	// KeepAlive is the interval of SSE comment pings on /tasks/stream.
	KeepAlive time.Duration
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		MaxBodySize:     20 << 20, // inline image data can be large
		ShutdownTimeout: 30,
		KeepAlive:       15 * time.Second,
	}
}

// NewAdapter creates an HTTP adapter. Middleware is applied to the
// executor in the given order.
func NewAdapter(executor transport.TaskExecutor, progress transport.ProgressSource, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		executor = transport.Chain(middlewares...)(executor)
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultConfig().KeepAlive
	}

	a := &Adapter{
		executor: executor,
		progress: progress,
		mux:      http.NewServeMux(),
		config:   cfg,
	}

	a.mux.HandleFunc("POST /tasks", a.handleSubmit)
	a.mux.HandleFunc("GET /tasks/stream", a.handleStream)
	a.mux.HandleFunc("GET /tasks/pending", a.handlePending)
	a.mux.HandleFunc("POST /tasks/{vendor}/result", a.handleFetchResult)

	return a
}

// Handler returns the http.Handler for this adapter, including request ID
// propagation.
func (a *Adapter) Handler() http.Handler {
	return httpRequestIDMiddleware(a.mux)
}

// httpRequestIDMiddleware propagates the X-Request-ID header into the
// context and echoes the effective request ID on the response.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Request-ID"); id != "" {
			r = r.WithContext(transport.ContextWithRequestID(r.Context(), id))
		}
		rw := &requestIDResponseWriter{ResponseWriter: w, r: r}
		next.ServeHTTP(rw, r)
	})
}

// requestIDResponseWriter injects the X-Request-ID header before the first write.
type requestIDResponseWriter struct {
	http.ResponseWriter
	r           *http.Request
	headersSent bool
}

func (w *requestIDResponseWriter) WriteHeader(statusCode int) {
	w.ensureRequestIDHeader()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *requestIDResponseWriter) Write(b []byte) (int, error) {
	w.ensureRequestIDHeader()
	return w.ResponseWriter.Write(b)
}

func (w *requestIDResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter for http.NewResponseController.
func (w *requestIDResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *requestIDResponseWriter) ensureRequestIDHeader() {
	if w.headersSent {
		return
	}
	w.headersSent = true
	if id := transport.RequestIDFromContext(w.r.Context()); id != "" {
		w.ResponseWriter.Header().Set("X-Request-ID", id)
	}
}

// handleSubmit handles POST /tasks.
func (a *Adapter) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req api.SubmitTaskRequest
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.executor.Submit(r.Context(), auth.UserID(r.Context()), &req)
	a.writeResult(w, req.Vendor, res, err)
}

// handleFetchResult handles POST /tasks/{vendor}/result.
func (a *Adapter) handleFetchResult(w http.ResponseWriter, r *http.Request) {
	vendor := r.PathValue("vendor")
	var req api.FetchResultRequest
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.executor.FetchResult(r.Context(), auth.UserID(r.Context()), vendor, &req)
	a.writeResult(w, vendor, res, err)
}

// handlePending handles GET /tasks/pending?vendor=.
func (a *Adapter) handlePending(w http.ResponseWriter, r *http.Request) {
	if a.progress == nil {
		writeJSON(w, http.StatusOK, []api.ProgressSnapshot{})
		return
	}
	writeJSON(w, http.StatusOK, a.progress.Pending(auth.UserID(r.Context()), r.URL.Query().Get("vendor")))
}

// decode reads a JSON body into v, writing the error response on failure.
func (a *Adapter) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct != "" && !isJSON(ct) {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
			http.StatusUnsupportedMediaType,
		)
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return false
		}
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()),
			http.StatusBadRequest,
		)
		return false
	}
	return true
}

// writeResult writes a task result. A failed result is never sent as a
// 200: it becomes an upstream error envelope.
func (a *Adapter) writeResult(w http.ResponseWriter, vendor string, res *api.TaskResult, err error) {
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	if res == nil {
		transport.WriteAPIError(w, api.NewServerError("executor returned no result"))
		return
	}
	if res.Status == api.TaskStatusFailed {
		transport.WriteAPIError(w, failureError(vendor, res))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func failureError(vendor string, res *api.TaskResult) *api.APIError {
	if v := res.RawString("vendor"); v != "" {
		vendor = v
	}
	reason := res.RawString("failureReason")
	if reason == "" {
		reason = "vendor reported the task as failed"
	}
	apiErr := api.NewUpstreamError(vendor, 0, reason, nil)
	apiErr.Details = map[string]any{"vendor": vendor, "taskId": res.ID, "kind": res.Kind, "status": res.Status, "raw": res.Raw}
	return apiErr
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func isJSON(ct string) bool {
	return ct == "application/json" || len(ct) > 16 && ct[:17] == "application/json;"
}
