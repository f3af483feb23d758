// Package veo adapts Veo video proxies. Creation returns a job id right away
// and the caller polls with FetchResult, which is idempotent.
//
// Wire shapes:
//
//	POST /v1/video/create   {"model","prompt","images":[],"aspect_ratio"} -> {"id","status"}
//	GET  /v1/video/query?id -> {"id","status","video_url","progress",...}
package veo

import (
	"context"
	"net/http"
	"net/url"

	"github.com/mdsxbm/tapcanvas/pkg/api"
	"github.com/mdsxbm/tapcanvas/pkg/poller"
	"github.com/mdsxbm/tapcanvas/pkg/provider"
	"github.com/mdsxbm/tapcanvas/pkg/provider/extract"
	"github.com/mdsxbm/tapcanvas/pkg/provider/vendorhttp"
)

const Name = "veo"

// TextModels maps text_to_video requests to a model. Veo clips are 8s.
var TextModels = provider.ModelTable{
	Rows: []provider.ModelRow{
		{DurationSeconds: 8, Model: "veo3-fast"},
	},
	Default: provider.ModelRow{Model: "veo3-fast"},
}

// FrameModels maps image_to_video requests to a first-frame model.
var FrameModels = provider.ModelTable{
	Rows: []provider.ModelRow{
		{DurationSeconds: 8, Model: "veo3-fast-frames"},
	},
	Default: provider.ModelRow{Model: "veo3-fast-frames"},
}

// Config holds configuration for the Veo adapter.
type Config struct {
	HTTP        provider.HTTPSettings
	TextModels  provider.ModelTable
	FrameModels provider.ModelTable
}

// Adapter implements the veo vendor.
type Adapter struct {
	cfg    Config
	shared *vendorhttp.Shared
}

var (
	_ provider.Adapter        = (*Adapter)(nil)
	_ provider.VideoGenerator = (*Adapter)(nil)
	_ provider.ResultFetcher  = (*Adapter)(nil)
)

// New creates a Veo adapter. Veo has no public default endpoint; the base
// URL comes from a provider row or proxy config.
func New(cfg Config) *Adapter {
	if len(cfg.TextModels.Rows) == 0 && cfg.TextModels.Default.Model == "" {
		cfg.TextModels = TextModels
	}
	if len(cfg.FrameModels.Rows) == 0 && cfg.FrameModels.Default.Model == "" {
		cfg.FrameModels = FrameModels
	}
	cfg.HTTP = cfg.HTTP.WithDefaults("")
	return &Adapter{cfg: cfg, shared: vendorhttp.NewShared(Name, cfg.HTTP)}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Supports:     []provider.Capability{provider.CapTextToVideo},
		RequiresKey:  true,
		AsyncResults: true,
	}
}

type createRequest struct {
	Model         string   `json:"model"`
	Prompt        string   `json:"prompt"`
	Images        []string `json:"images,omitempty"`
	AspectRatio   string   `json:"aspect_ratio,omitempty"`
	EnhancePrompt bool     `json:"enhance_prompt"`
}

// Model picks the concrete model for req. An explicit model key wins.
func (a *Adapter) Model(pc *provider.Context, req *api.TaskRequest) string {
	table := a.cfg.TextModels
	if req.ImageRef() != "" {
		table = a.cfg.FrameModels
	}
	return pc.Model(req, table.Lookup(req.Orientation(), req.DurationSeconds()))
}

// TextToVideo creates the job and returns status running with raw.taskId.
func (a *Adapter) TextToVideo(ctx context.Context, pc *provider.Context, req *api.TaskRequest) (*api.TaskResult, error) {
	body := &createRequest{
		Model:         a.Model(pc, req),
		Prompt:        req.Prompt,
		AspectRatio:   aspectRatio(req.Orientation()),
		EnhancePrompt: true,
	}
	if img := req.ImageRef(); img != "" {
		body.Images = []string{img}
	}

	vc := a.shared.Client(pc, "v1", false)
	resp, err := vc.Do(ctx, http.MethodPost, "video/create", body, nil)
	if err != nil {
		return nil, err
	}
	p := extract.FromBytes(resp.Body)
	id := extract.JobID(p)
	if id == "" {
		return nil, api.NewMalformedUpstreamError(Name, "create response has no job id")
	}

	pc.Report(provider.ProgressUpdate{Status: api.TaskStatusRunning, Progress: 5, TaskID: id})

	res := &api.TaskResult{ID: id, Kind: req.Kind, Status: api.TaskStatusRunning}
	res.SetRaw("taskId", id)
	res.SetRaw("model", body.Model)
	res.SetRaw("vendorStatus", extract.RawStatus(p))
	return res, nil
}

// FetchResult queries the job once.
func (a *Adapter) FetchResult(ctx context.Context, pc *provider.Context, taskID, prompt string) (*api.TaskResult, error) {
	vc := a.shared.Client(pc, "v1", false)
	resp, err := vc.Do(ctx, http.MethodGet, "video/query?id="+url.QueryEscape(taskID), nil, nil)
	if err != nil {
		return nil, err
	}
	p := extract.FromBytes(resp.Body)
	if p.JSON == nil {
		return nil, api.NewMalformedUpstreamError(Name, "query response is not JSON")
	}
	res := poller.Observe(p, nil).Result(taskID, api.TaskKindTextToVideo, api.AssetTypeVideo, extract.Thumbnail(p))
	res.SetRaw("vendorStatus", extract.RawStatus(p))
	if prompt != "" {
		res.SetRaw("prompt", prompt)
	}
	return res, nil
}

func aspectRatio(orientation string) string {
	switch orientation {
	case "portrait":
		return "9:16"
	case "landscape":
		return "16:9"
	case "square":
		return "1:1"
	}
	return ""
}
