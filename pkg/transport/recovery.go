package transport

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/mdsxbm/tapcanvas/pkg/api"
)

// Recovery returns middleware that catches panics in the executor and
// converts them to server errors. The server continues to accept new
// requests after a panic is recovered.
func Recovery() Middleware {
	return around(func(ctx context.Context, op, label string, call func(context.Context) error) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in task executor", "op", op, "vendor", label, "panic", r, "stack", string(debug.Stack()))
				retErr = api.NewServerError(fmt.Sprintf("internal server error: %v", r))
			}
		}()
		return call(ctx)
	})
}
