// Package openai adapts the OpenAI API: chat completions, image generation
// and edits, and vision chat for image_to_prompt.
package openai

import (
	"context"

	"github.com/mdsxbm/tapcanvas/pkg/api"
	"github.com/mdsxbm/tapcanvas/pkg/provider"
	"github.com/mdsxbm/tapcanvas/pkg/provider/openaicompat"
	"github.com/mdsxbm/tapcanvas/pkg/provider/vendorhttp"
)

const (
	// Name is the vendor identifier.
	Name = "openai"

	// DefaultBaseURL is used when no provider row supplies one.
	DefaultBaseURL = "https://api.openai.com"
)

// Config holds configuration for the OpenAI adapter.
type Config struct {
	HTTP provider.HTTPSettings

	// Default models per operation, used when neither the profile nor the
	// request names one.
	ChatModel   string
	ImageModel  string
	VisionModel string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChatModel:   "gpt-4o-mini",
		ImageModel:  "gpt-image-1",
		VisionModel: "gpt-4o-mini",
	}
}

// Adapter implements the OpenAI vendor.
type Adapter struct {
	cfg    Config
	shared *vendorhttp.Shared
}

var (
	_ provider.Adapter        = (*Adapter)(nil)
	_ provider.ChatRunner     = (*Adapter)(nil)
	_ provider.ImageGenerator = (*Adapter)(nil)
	_ provider.ImageEditor    = (*Adapter)(nil)
	_ provider.ImageDescriber = (*Adapter)(nil)
)

// New creates an OpenAI adapter.
func New(cfg Config) *Adapter {
	d := DefaultConfig()
	if cfg.ChatModel == "" {
		cfg.ChatModel = d.ChatModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = d.ImageModel
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = d.VisionModel
	}
	cfg.HTTP = cfg.HTTP.WithDefaults(DefaultBaseURL)
	return &Adapter{cfg: cfg, shared: vendorhttp.NewShared(Name, cfg.HTTP)}
}

// Name returns the vendor identifier.
func (a *Adapter) Name() string { return Name }

// Capabilities returns what this adapter supports.
func (a *Adapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Supports: []provider.Capability{
			provider.CapRunChat,
			provider.CapTextToImage,
			provider.CapImageEdit,
			provider.CapImageToPrompt,
		},
		RequiresKey: true,
	}
}

// RunChat serves chat and prompt_refine.
func (a *Adapter) RunChat(ctx context.Context, pc *provider.Context, req *api.TaskRequest) (*api.TaskResult, error) {
	vc := a.shared.Client(pc, "v1", false)
	body := openaicompat.ChatRequest(pc.Model(req, a.cfg.ChatModel), req)
	body.User = openaicompat.EndUser(pc.UserID)
	c, err := openaicompat.Chat(ctx, vc, body)
	if err != nil {
		return nil, err
	}
	return openaicompat.ChatResult(req.Kind, c), nil
}

// TextToImage calls images/generations.
func (a *Adapter) TextToImage(ctx context.Context, pc *provider.Context, req *api.TaskRequest) (*api.TaskResult, error) {
	return a.images(ctx, pc, req, "images/generations")
}

// ImageEdit calls images/edits with the JSON body form, passing the source
// image by URL or data URL.
func (a *Adapter) ImageEdit(ctx context.Context, pc *provider.Context, req *api.TaskRequest) (*api.TaskResult, error) {
	return a.images(ctx, pc, req, "images/edits")
}

// ImageToPrompt describes the reference image through a vision chat.
func (a *Adapter) ImageToPrompt(ctx context.Context, pc *provider.Context, req *api.TaskRequest) (*api.TaskResult, error) {
	vc := a.shared.Client(pc, "v1", false)
	c, err := openaicompat.Chat(ctx, vc, openaicompat.DescribeRequest(pc.Model(req, a.cfg.VisionModel), req))
	if err != nil {
		return nil, err
	}
	return openaicompat.ChatResult(req.Kind, c), nil
}

func (a *Adapter) images(ctx context.Context, pc *provider.Context, req *api.TaskRequest, path string) (*api.TaskResult, error) {
	vc := a.shared.Client(pc, "v1", true)
	body := openaicompat.ImageGenerationRequest(pc.Model(req, a.cfg.ImageModel), req)
	body.User = openaicompat.EndUser(pc.UserID)
	pc.Report(provider.ProgressUpdate{Status: api.TaskStatusRunning, Progress: 10, Message: "generating"})
	resp, err := openaicompat.Images(ctx, vc, path, body)
	if err != nil {
		return nil, err
	}
	return openaicompat.ImageResult(Name, req.Kind, resp)
}
