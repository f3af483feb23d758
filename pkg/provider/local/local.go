// Package local adapts a keyless OpenAI-compatible chat server running next
// to the engine (Ollama, llama.cpp, vLLM).
package local

import (
	"context"

	"github.com/mdsxbm/tapcanvas/pkg/api"
	"github.com/mdsxbm/tapcanvas/pkg/provider"
	"github.com/mdsxbm/tapcanvas/pkg/provider/openaicompat"
	"github.com/mdsxbm/tapcanvas/pkg/provider/vendorhttp"
)

const (
	Name           = "local"
	DefaultBaseURL = "http://localhost:11434"
)

// Config holds configuration for the local adapter.
type Config struct {
	HTTP      provider.HTTPSettings
	ChatModel string
}

// Adapter implements the local vendor.
type Adapter struct {
	cfg    Config
	shared *vendorhttp.Shared
}

var (
	_ provider.Adapter    = (*Adapter)(nil)
	_ provider.ChatRunner = (*Adapter)(nil)
)

// New creates a local adapter.
func New(cfg Config) *Adapter {
	if cfg.ChatModel == "" {
		cfg.ChatModel = "llama3.2"
	}
	cfg.HTTP = cfg.HTTP.WithDefaults(DefaultBaseURL)
	return &Adapter{cfg: cfg, shared: vendorhttp.NewShared(Name, cfg.HTTP)}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Supports:    []provider.Capability{provider.CapRunChat},
		RequiresKey: false,
	}
}

// RunChat serves chat and prompt_refine. A key, when one was resolved
// anyway, is still sent.
func (a *Adapter) RunChat(ctx context.Context, pc *provider.Context, req *api.TaskRequest) (*api.TaskResult, error) {
	vc := a.shared.Client(pc, "v1", true)
	c, err := openaicompat.Chat(ctx, vc, openaicompat.ChatRequest(pc.Model(req, a.cfg.ChatModel), req))
	if err != nil {
		return nil, err
	}
	return openaicompat.ChatResult(req.Kind, c), nil
}
