// Package sora2api adapts sora2api gateways.
//
// Videos use a create-then-poll split:
//
//	POST /v1/videos      {"model","prompt","image"} -> {"id","status":"queued"}
//	GET  /v1/videos/{id} -> {"id","status","progress","url"} or, on some
//	                        builds, {"status","content":"<video src='...'>"}
//
// Images come from a streamed chat completion whose text carries a markdown
// image: ![Generated Image](https://...).
package sora2api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/mdsxbm/tapcanvas/pkg/api"
	"github.com/mdsxbm/tapcanvas/pkg/poller"
	"github.com/mdsxbm/tapcanvas/pkg/provider"
	"github.com/mdsxbm/tapcanvas/pkg/provider/extract"
	"github.com/mdsxbm/tapcanvas/pkg/provider/openaicompat"
	"github.com/mdsxbm/tapcanvas/pkg/provider/vendorhttp"
)

const Name = "sora2api"

// VideoModels maps orientation and duration to a sora2api video model.
var VideoModels = provider.ModelTable{
	Rows: []provider.ModelRow{
		{Orientation: "landscape", DurationSeconds: 10, Model: "sora-video-landscape-10s"},
		{Orientation: "landscape", DurationSeconds: 15, Model: "sora-video-landscape-15s"},
		{Orientation: "portrait", DurationSeconds: 10, Model: "sora-video-portrait-10s"},
		{Orientation: "portrait", DurationSeconds: 15, Model: "sora-video-portrait-15s"},
	},
	Default: provider.ModelRow{Orientation: "landscape", DurationSeconds: 10, Model: "sora-video-landscape-10s"},
}

// ImageModels maps orientation to a sora2api image model.
var ImageModels = provider.ModelTable{
	Rows: []provider.ModelRow{
		{Orientation: "landscape", Model: "sora-image-landscape"},
		{Orientation: "portrait", Model: "sora-image-portrait"},
		{Orientation: "square", Model: "sora-image"},
	},
	Default: provider.ModelRow{Model: "sora-image"},
}

// Config holds configuration for the sora2api adapter.
type Config struct {
	HTTP        provider.HTTPSettings
	VideoModels provider.ModelTable
	ImageModels provider.ModelTable
}

// Adapter implements the sora2api vendor.
type Adapter struct {
	cfg    Config
	shared *vendorhttp.Shared
}

var (
	_ provider.Adapter        = (*Adapter)(nil)
	_ provider.VideoGenerator = (*Adapter)(nil)
	_ provider.ImageGenerator = (*Adapter)(nil)
	_ provider.ResultFetcher  = (*Adapter)(nil)
)

// New creates a sora2api adapter.
func New(cfg Config) *Adapter {
	if cfg.VideoModels.Default.Model == "" {
		cfg.VideoModels = VideoModels
	}
	if cfg.ImageModels.Default.Model == "" {
		cfg.ImageModels = ImageModels
	}
	cfg.HTTP = cfg.HTTP.WithDefaults("")
	return &Adapter{cfg: cfg, shared: vendorhttp.NewShared(Name, cfg.HTTP)}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Supports:     []provider.Capability{provider.CapTextToVideo, provider.CapTextToImage},
		RequiresKey:  true,
		AsyncResults: true,
	}
}

type videoRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Image  string `json:"image,omitempty"`
}

// TextToVideo creates the job and returns status running with raw.taskId.
func (a *Adapter) TextToVideo(ctx context.Context, pc *provider.Context, req *api.TaskRequest) (*api.TaskResult, error) {
	body := &videoRequest{
		Model:  pc.Model(req, a.cfg.VideoModels.Lookup(req.Orientation(), req.DurationSeconds())),
		Prompt: req.Prompt,
		Image:  req.ImageRef(),
	}
	vc := a.shared.Client(pc, "v1", false)
	resp, err := vc.Do(ctx, http.MethodPost, "videos", body, nil)
	if err != nil {
		return nil, err
	}
	p := extract.FromBytes(resp.Body)
	id := extract.JobID(p)
	if id == "" {
		return nil, api.NewMalformedUpstreamError(Name, "create response has no video id")
	}
	pc.Report(provider.ProgressUpdate{Status: api.TaskStatusRunning, Progress: 5, TaskID: id})

	res := &api.TaskResult{ID: id, Kind: req.Kind, Status: api.TaskStatusRunning}
	res.SetRaw("taskId", id)
	res.SetRaw("model", body.Model)
	res.SetRaw("vendorStatus", extract.RawStatus(p))
	return res, nil
}

// FetchResult queries the video job once. The media URL may be a field or
// markdown inside content; without one a succeeded job stays running.
func (a *Adapter) FetchResult(ctx context.Context, pc *provider.Context, taskID, prompt string) (*api.TaskResult, error) {
	vc := a.shared.Client(pc, "v1", false)
	resp, err := vc.Do(ctx, http.MethodGet, "videos/"+url.PathEscape(taskID), nil, nil)
	if err != nil {
		return nil, err
	}
	p := extract.FromBytes(resp.Body)
	res := poller.Observe(p, nil).Result(taskID, api.TaskKindTextToVideo, api.AssetTypeVideo, extract.Thumbnail(p))
	res.SetRaw("vendorStatus", extract.RawStatus(p))
	if prompt != "" {
		res.SetRaw("prompt", prompt)
	}
	return res, nil
}

// TextToImage streams a chat completion and extracts the markdown image.
func (a *Adapter) TextToImage(ctx context.Context, pc *provider.Context, req *api.TaskRequest) (*api.TaskResult, error) {
	model := pc.Model(req, a.cfg.ImageModels.Lookup(req.Orientation(), 0))
	body := openaicompat.ChatRequest(model, req)
	body.Stream = true

	pc.Report(provider.ProgressUpdate{Status: api.TaskStatusRunning, Progress: 10, Message: "generating"})
	c, err := openaicompat.Chat(ctx, a.shared.Client(pc, "v1", true), body)
	if err != nil {
		return nil, err
	}
	urls := extract.MediaURLs.All(extract.Payload{Text: c.Text})
	if len(urls) == 0 {
		return nil, api.NewMalformedUpstreamError(Name, "completion carries no image: "+c.Text)
	}
	res := &api.TaskResult{ID: c.ID, Kind: req.Kind, Status: api.TaskStatusSucceeded}
	for _, u := range urls {
		res.Assets = append(res.Assets, api.TaskAsset{Type: api.AssetTypeImage, URL: u})
	}
	res.SetRaw("model", model)
	return res, nil
}
