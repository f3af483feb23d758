package transport

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns middleware that emits one structured log entry per task
// operation with the request ID, operation, vendor, duration and error.
// HTTP status codes are logged by the HTTP adapter.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return around(func(ctx context.Context, op, label string, call func(context.Context) error) error {
		start := time.Now()
		err := call(ctx)

		attrs := []slog.Attr{
			slog.String("request_id", RequestIDFromContext(ctx)),
			slog.String("op", op),
			slog.String("vendor", label),
			slog.Duration("duration", time.Since(start)),
		}
		switch {
		case err != nil && IsCanceled(err):
			logger.LogAttrs(ctx, slog.LevelInfo, "task canceled", attrs...)
		case err != nil:
			attrs = append(attrs, slog.String("error", err.Error()))
			logger.LogAttrs(ctx, slog.LevelError, "task failed", attrs...)
		default:
			logger.LogAttrs(ctx, slog.LevelInfo, "task completed", attrs...)
		}
		return err
	})
}
