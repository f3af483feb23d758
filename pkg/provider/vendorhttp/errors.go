package vendorhttp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mdsxbm/tapcanvas/pkg/api"
	"github.com/mdsxbm/tapcanvas/pkg/debug"
)

// MapHTTPError converts a non-2xx vendor response into an UpstreamError that
// carries the status, a readable message and the vendor payload.
func MapHTTPError(vendor string, status int, body []byte) *api.APIError {
	payload := decodePayload(body)
	message := ExtractErrorMessage(payload)
	if message == "" {
		message = fmt.Sprintf("%s returned HTTP %d", vendor, status)
		if text := http.StatusText(status); text != "" {
			message += " " + text
		}
	}
	return api.NewUpstreamError(vendor, status, message, payload)
}

// MapNetworkError converts a transport-level failure (connection refused,
// timeout, DNS) into an UpstreamError without a status.
func MapNetworkError(vendor string, err error) *api.APIError {
	return api.NewUpstreamError(vendor, 0, fmt.Sprintf("%s connection error: %s", vendor, err.Error()), nil)
}

// ExtractErrorMessage finds a human-readable message in the error shapes
// vendors use:
//
//	{"error":{"message":"..."}}      openai, sora2api, gemini
//	{"error":"..."}                  veo proxies
//	{"code":"...","message":"..."}   dashscope (qwen)
//	{"detail":"..."}                 python-based proxies
func ExtractErrorMessage(payload any) string {
	switch p := payload.(type) {
	case string:
		return strings.TrimSpace(debug.Truncate(p, 500))
	case map[string]any:
		if e, ok := p["error"].(map[string]any); ok {
			if m, ok := e["message"].(string); ok && m != "" {
				return m
			}
		}
		for _, key := range []string{"error", "message", "detail", "msg"} {
			if m, ok := p[key].(string); ok && m != "" {
				return m
			}
		}
	}
	return ""
}

func decodePayload(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		return v
	}
	return debug.Truncate(string(body), 4096)
}
