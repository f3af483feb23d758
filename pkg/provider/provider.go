package provider

import (
	"context"
	"time"

	"github.com/mdsxbm/tapcanvas/pkg/api"
)

// Adapter is one vendor's translation layer. Operations are exposed through
// the optional capability interfaces below; Capabilities must list exactly
// the ones the adapter implements.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Adapter interface {
	// Name returns the vendor identifier (e.g., "qwen", "veo").
	Name() string

	// Capabilities returns what this adapter supports.
	Capabilities() Capabilities
}

// ChatRunner serves chat and prompt_refine tasks.
type ChatRunner interface {
	RunChat(ctx context.Context, pc *Context, req *api.TaskRequest) (*api.TaskResult, error)
}

// ImageGenerator serves text_to_image tasks.
type ImageGenerator interface {
	TextToImage(ctx context.Context, pc *Context, req *api.TaskRequest) (*api.TaskResult, error)
}

// VideoGenerator serves text_to_video and image_to_video tasks.
type VideoGenerator interface {
	TextToVideo(ctx context.Context, pc *Context, req *api.TaskRequest) (*api.TaskResult, error)
}

// ImageEditor serves image_edit tasks.
type ImageEditor interface {
	ImageEdit(ctx context.Context, pc *Context, req *api.TaskRequest) (*api.TaskResult, error)
}

// ImageDescriber serves image_to_prompt tasks.
type ImageDescriber interface {
	ImageToPrompt(ctx context.Context, pc *Context, req *api.TaskRequest) (*api.TaskResult, error)
}

// ResultFetcher is implemented by vendors whose create call only returns a
// job id. FetchResult is idempotent and safe to call until the job is terminal.
type ResultFetcher interface {
	FetchResult(ctx context.Context, pc *Context, taskID, prompt string) (*api.TaskResult, error)
}

// Credential sources, in cascade order.
const (
	SourceProxy          = "proxy"
	SourceOwnToken       = "own_token"
	SourceProviderShared = "provider_shared_token"
	SourceSharedPool     = "shared_pool"
	SourceKeyless        = "keyless"
)

// Context is the minimal capability set an adapter needs for one call. It is
// rebuilt per call and never persisted.
type Context struct {
	BaseURL  string
	APIKey   string
	UserID   string
	ModelKey string

	// OnProgress, when set, receives intermediate updates from the adapter.
	OnProgress func(ProgressUpdate)

	// Source records which cascade step produced APIKey.
	Source string

	// TokenID identifies the token behind APIKey; empty for proxies.
	TokenID string

	// SharedToken is true when TokenID came from the shared pool.
	SharedToken bool

	// TokenFailures is the token's shared failure count at resolution time.
	TokenFailures int
}

// ProgressUpdate is an intermediate report from an adapter. Progress uses
// either a 0-1 fraction or a 0-100 percentage; the emitter normalizes it.
type ProgressUpdate struct {
	Status   api.TaskStatus
	Progress float64
	Message  string
	TaskID   string
	Raw      map[string]any
}

// Report forwards u to OnProgress if set.
func (c *Context) Report(u ProgressUpdate) {
	if c != nil && c.OnProgress != nil {
		c.OnProgress(u)
	}
}

// HTTPSettings are the per-vendor transport settings shared by adapters.
type HTTPSettings struct {
	// Timeout bounds light calls (create, poll, chat).
	Timeout time.Duration

	// LongTimeout bounds heavy synchronous generation calls.
	LongTimeout time.Duration

	// RatePerSecond paces outbound requests per vendor; 0 disables pacing.
	RatePerSecond float64
	Burst         int

	// DefaultBaseURL is used when credential resolution yields no base URL.
	DefaultBaseURL string
}

// WithDefaults fills zero fields.
func (s HTTPSettings) WithDefaults(defaultBaseURL string) HTTPSettings {
	if s.Timeout == 0 {
		s.Timeout = 30 * time.Second
	}
	if s.LongTimeout == 0 {
		s.LongTimeout = 120 * time.Second
	}
	if s.Burst <= 0 {
		s.Burst = 1
	}
	if s.DefaultBaseURL == "" {
		s.DefaultBaseURL = defaultBaseURL
	}
	return s
}

// Model returns the model key for one call: the resolved context's, then the
// request's, then def.
func (c *Context) Model(req *api.TaskRequest, def string) string {
	if c != nil && c.ModelKey != "" {
		return c.ModelKey
	}
	if req != nil {
		if m := req.ModelKey(); m != "" {
			return m
		}
	}
	return def
}
