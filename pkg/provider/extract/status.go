package extract

import (
	"strconv"
	"strings"

	"github.com/mdsxbm/tapcanvas/pkg/api"
)

// statusAliases folds the status vocabularies of every vendor into the four
// task states. dashscope uses PENDING/RUNNING/SUCCEEDED/FAILED, veo proxies
// use processing/completed, sora2api uses queued/in_progress/succeeded.
var statusAliases = map[string]api.TaskStatus{
	"queued":      api.TaskStatusQueued,
	"pending":     api.TaskStatusQueued,
	"submitted":   api.TaskStatusQueued,
	"waiting":     api.TaskStatusQueued,
	"created":     api.TaskStatusQueued,
	"not_start":   api.TaskStatusQueued,
	"running":     api.TaskStatusRunning,
	"processing":  api.TaskStatusRunning,
	"in_progress": api.TaskStatusRunning,
	"generating":  api.TaskStatusRunning,
	"started":     api.TaskStatusRunning,
	"succeeded":   api.TaskStatusSucceeded,
	"success":     api.TaskStatusSucceeded,
	"completed":   api.TaskStatusSucceeded,
	"complete":    api.TaskStatusSucceeded,
	"done":        api.TaskStatusSucceeded,
	"finished":    api.TaskStatusSucceeded,
	"failed":      api.TaskStatusFailed,
	"failure":     api.TaskStatusFailed,
	"error":       api.TaskStatusFailed,
	"cancelled":   api.TaskStatusFailed,
	"canceled":    api.TaskStatusFailed,
	"expired":     api.TaskStatusFailed,
	"rejected":    api.TaskStatusFailed,
}

// NormalizeStatus maps a vendor status string to a task status. Unknown
// non-empty values are treated as running so polling continues.
func NormalizeStatus(raw string) api.TaskStatus {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	if st, ok := statusAliases[s]; ok {
		return st
	}
	if s == "" {
		return api.TaskStatusQueued
	}
	return api.TaskStatusRunning
}

// SettleStatus applies the "no asset, not done" rule: a succeeded status
// without any derivable media URL is reported as running, so the caller keeps
// polling an eventually consistent backend.
func SettleStatus(status api.TaskStatus, mediaURL string) api.TaskStatus {
	if status == api.TaskStatusSucceeded && mediaURL == "" {
		return api.TaskStatusRunning
	}
	return status
}

// FailureReason returns the vendor's failure explanation from the fields
// vendors use for it, verbatim.
func FailureReason(p Payload) string {
	m, ok := p.JSON.(map[string]any)
	if !ok {
		return ""
	}
	scopes := []map[string]any{m, asMap(m["output"]), asMap(m["data"])}
	// Dedicated reason fields win over a wrapper's generic message.
	for _, scope := range scopes {
		for _, key := range []string{"failure_reason", "fail_reason"} {
			if s, ok := scope[key].(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	for _, scope := range scopes {
		for _, key := range []string{"error_message", "message"} {
			if s, ok := scope[key].(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
		if e, ok := scope["error"].(string); ok && e != "" {
			return e
		}
		if e := asMap(scope["error"]); e != nil {
			if s, ok := e["message"].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// Progress returns a progress value from "progress" or "percent" fields, as
// either a 0-1 fraction or a percentage (string values like "42%" accepted).
func Progress(p Payload) (float64, bool) {
	m, ok := p.JSON.(map[string]any)
	if !ok {
		return 0, false
	}
	for _, scope := range []map[string]any{m, asMap(m["output"]), asMap(m["data"])} {
		for _, key := range []string{"progress", "percent", "progress_pct"} {
			switch v := scope[key].(type) {
			case float64:
				return v, true
			case string:
				if f, ok := parsePercent(v); ok {
					return f, true
				}
			}
		}
	}
	return 0, false
}

func parsePercent(s string) (float64, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// RawStatus returns the vendor status string. dashscope nests it as
// output.task_status; most video proxies use a top-level status or state.
func RawStatus(p Payload) string {
	m, ok := p.JSON.(map[string]any)
	if !ok {
		return ""
	}
	for _, scope := range []map[string]any{m, asMap(m["output"]), asMap(m["data"])} {
		for _, key := range []string{"task_status", "status", "state"} {
			if s, ok := scope[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
