package transport

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

// RequestID returns middleware that assigns a unique request ID to each
// operation. If the context already carries a request ID (set by the HTTP
// adapter from the X-Request-ID header), that value is used.
func RequestID() Middleware {
	return around(func(ctx context.Context, _, _ string, call func(context.Context) error) error {
		if RequestIDFromContext(ctx) == "" {
			ctx = ContextWithRequestID(ctx, generateRequestID())
		}
		return call(ctx)
	})
}

// generateRequestID creates a new unique request ID as a hex string.
func generateRequestID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
