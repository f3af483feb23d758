// Package transport defines the handler interfaces and middleware chain for
// the task HTTP/SSE layer.
//
// # Handler Interfaces
//
//   - TaskExecutor runs tasks and polls client-driven vendor jobs. The
//     engine implements it.
//   - ProgressSource hands out per-user progress subscriptions and the
//     pending snapshots of store-only vendors.
//
// # Middleware
//
// The middleware chain wraps TaskExecutor with cross-cutting concerns:
// panic recovery, request ID assignment (X-Request-ID) and structured
// logging via log/slog.
package transport
