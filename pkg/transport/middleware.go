package transport

import (
	"context"

	"github.com/mdsxbm/tapcanvas/pkg/api"
)

// Middleware wraps a TaskExecutor to add cross-cutting behavior.
// Middleware is applied in order: the first middleware in the chain is
// the outermost wrapper (executes first on the way in, last on the way out).
type Middleware func(TaskExecutor) TaskExecutor

// Chain composes multiple middleware into a single middleware.
// Middleware are applied in order: Chain(a, b, c) produces a(b(c(handler))).
func Chain(middlewares ...Middleware) Middleware {
	return func(next TaskExecutor) TaskExecutor {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// around builds a middleware from one hook applied to both operations.
// op is "submit" or "fetch_result"; label is the vendor or profile.
func around(hook func(ctx context.Context, op, label string, call func(context.Context) error) error) Middleware {
	return func(next TaskExecutor) TaskExecutor {
		return ExecutorFuncs{
			SubmitFunc: func(ctx context.Context, userID string, req *api.SubmitTaskRequest) (res *api.TaskResult, err error) {
				label := req.Vendor
				if label == "" {
					label = "profile:" + req.ProfileID
				}
				err = hook(ctx, "submit", label, func(ctx context.Context) error {
					res, err = next.Submit(ctx, userID, req)
					return err
				})
				return res, err
			},
			FetchFunc: func(ctx context.Context, userID, vendor string, req *api.FetchResultRequest) (res *api.TaskResult, err error) {
				err = hook(ctx, "fetch_result", vendor, func(ctx context.Context) error {
					res, err = next.FetchResult(ctx, userID, vendor, req)
					return err
				})
				return res, err
			},
		}
	}
}

// requestIDKeyType is the context key type for request IDs.
type requestIDKeyType struct{}

// requestIDKey is the context key for storing and retrieving request IDs.
var requestIDKey = requestIDKeyType{}

// RequestIDFromContext extracts the request ID from the context.
// Returns an empty string if no request ID is set.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithRequestID returns a new context with the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}
