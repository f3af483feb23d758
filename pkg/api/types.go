package api

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Task kinds and status
// ---------------------------------------------------------------------------

// TaskKind identifies the kind of content-generation work requested.
type TaskKind string

const (
	TaskKindChat          TaskKind = "chat"
	TaskKindPromptRefine  TaskKind = "prompt_refine"
	TaskKindTextToImage   TaskKind = "text_to_image"
	TaskKindImageToPrompt TaskKind = "image_to_prompt"
	TaskKindImageToVideo  TaskKind = "image_to_video"
	TaskKindTextToVideo   TaskKind = "text_to_video"
	TaskKindImageEdit     TaskKind = "image_edit"
)

// AllTaskKinds lists every kind accepted by the dispatcher.
var AllTaskKinds = []TaskKind{
	TaskKindChat,
	TaskKindPromptRefine,
	TaskKindTextToImage,
	TaskKindImageToPrompt,
	TaskKindImageToVideo,
	TaskKindTextToVideo,
	TaskKindImageEdit,
}

// Valid reports whether k is a known task kind.
func (k TaskKind) Valid() bool {
	for _, known := range AllTaskKinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsVideo reports whether the kind produces video assets.
func (k TaskKind) IsVideo() bool {
	return k == TaskKindTextToVideo || k == TaskKindImageToVideo
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusQueued    TaskStatus = "queued"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusSucceeded || s == TaskStatusFailed
}

// AssetType is the media type of a generated asset.
type AssetType string

const (
	AssetTypeImage AssetType = "image"
	AssetTypeVideo AssetType = "video"
)

// ---------------------------------------------------------------------------
// Request
// ---------------------------------------------------------------------------

// Well-known extras keys.
const (
	ExtraModelKey        = "modelKey"
	ExtraOrientation     = "orientation"
	ExtraDurationSeconds = "durationSeconds"
	ExtraImageURL        = "imageUrl"
	ExtraImageData       = "imageData"
	ExtraNodeID          = "nodeId"
	ExtraNodeKind        = "nodeKind"
	ExtraSystemPrompt    = "systemPrompt"
)

// Extras carries vendor-specific knobs that are not part of the normalized
// request shape. Values keep whatever JSON type the client sent.
type Extras map[string]any

// String returns the value for key as a string. Numbers are formatted,
// anything else yields "".
func (e Extras) String(key string) string {
	v, ok := e[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case json.Number:
		return t.String()
	}
	return ""
}

// Int returns the value for key as an int, accepting numbers and numeric strings.
func (e Extras) Int(key string) int {
	v, ok := e[key]
	if !ok || v == nil {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return int(math.Round(t))
	case int:
		return t
	case int64:
		return int(t)
	case json.Number:
		n, _ := t.Int64()
		return int(n)
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(t, "s")), 64)
		if err != nil {
			return 0
		}
		return int(math.Round(n))
	}
	return 0
}

// TaskRequest is the vendor-neutral description of one unit of generation work.
// It is not modified after dispatch.
type TaskRequest struct {
	Kind           TaskKind `json:"kind"`
	Prompt         string   `json:"prompt"`
	NegativePrompt string   `json:"negativePrompt,omitempty"`
	Seed           *int64   `json:"seed,omitempty"`
	Width          int      `json:"width,omitempty"`
	Height         int      `json:"height,omitempty"`
	Steps          int      `json:"steps,omitempty"`
	CfgScale       float64  `json:"cfgScale,omitempty"`
	Extras         Extras   `json:"extras,omitempty"`
}

func (r *TaskRequest) ModelKey() string     { return r.Extras.String(ExtraModelKey) }
func (r *TaskRequest) Orientation() string  { return strings.ToLower(r.Extras.String(ExtraOrientation)) }
func (r *TaskRequest) DurationSeconds() int { return r.Extras.Int(ExtraDurationSeconds) }
func (r *TaskRequest) NodeID() string       { return r.Extras.String(ExtraNodeID) }
func (r *TaskRequest) NodeKind() string     { return r.Extras.String(ExtraNodeKind) }
func (r *TaskRequest) SystemPrompt() string { return r.Extras.String(ExtraSystemPrompt) }

// ImageRef returns the reference image for image-driven kinds: the URL if
// present, otherwise the inline data (a data URL or bare base64).
func (r *TaskRequest) ImageRef() string {
	if u := r.Extras.String(ExtraImageURL); u != "" {
		return u
	}
	return r.Extras.String(ExtraImageData)
}

// SubmitTaskRequest is the body of POST /tasks. Exactly one of Vendor or
// ProfileID must be set.
type SubmitTaskRequest struct {
	Vendor    string      `json:"vendor,omitempty"`
	ProfileID string      `json:"profileId,omitempty"`
	Request   TaskRequest `json:"request"`
}

// FetchResultRequest is the body of the client-driven polling endpoints.
type FetchResultRequest struct {
	TaskID string `json:"taskId"`
	Prompt string `json:"prompt,omitempty"`
}

// ---------------------------------------------------------------------------
// Result
// ---------------------------------------------------------------------------

// TaskAsset is one generated media item. Only rehosting rewrites its URLs.
type TaskAsset struct {
	Type         AssetType `json:"type"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
}

// TaskResult is the normalized outcome of a dispatch or a poll. Raw carries
// vendor diagnostics and is not part of the contract.
type TaskResult struct {
	ID     string         `json:"id"`
	Kind   TaskKind       `json:"kind"`
	Status TaskStatus     `json:"status"`
	Assets []TaskAsset    `json:"assets"`
	Raw    map[string]any `json:"raw,omitempty"`
}

// MarshalJSON keeps assets an array even when empty.
func (r TaskResult) MarshalJSON() ([]byte, error) {
	type alias TaskResult
	a := alias(r)
	if a.Assets == nil {
		a.Assets = []TaskAsset{}
	}
	return json.Marshal(a)
}

// RawString returns Raw[key] when it is a string.
func (r *TaskResult) RawString(key string) string {
	if r.Raw == nil {
		return ""
	}
	s, _ := r.Raw[key].(string)
	return s
}

// SetRaw sets a diagnostic value, allocating Raw on first use.
func (r *TaskResult) SetRaw(key string, v any) {
	if r.Raw == nil {
		r.Raw = make(map[string]any)
	}
	r.Raw[key] = v
}

// ---------------------------------------------------------------------------
// Progress
// ---------------------------------------------------------------------------

// ProgressSnapshot is an ephemeral status update pushed to subscribers.
type ProgressSnapshot struct {
	NodeID    string         `json:"nodeId"`
	NodeKind  string         `json:"nodeKind,omitempty"`
	TaskKind  TaskKind       `json:"taskKind"`
	Vendor    string         `json:"vendor"`
	Status    TaskStatus     `json:"status"`
	Progress  *int           `json:"progress,omitempty"`
	Message   string         `json:"message,omitempty"`
	TaskID    string         `json:"taskId,omitempty"`
	Assets    []TaskAsset    `json:"assets,omitempty"`
	Raw       map[string]any `json:"raw,omitempty"`
	Timestamp int64          `json:"timestamp"`
}
