// Package qwen adapts Alibaba DashScope. Image synthesis is asynchronous:
// the create call returns output.task_id and the adapter polls
// /api/v1/tasks/{id} until output.task_status is terminal. Chat and vision
// go through DashScope's OpenAI-compatible mode.
package qwen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mdsxbm/tapcanvas/pkg/api"
	"github.com/mdsxbm/tapcanvas/pkg/poller"
	"github.com/mdsxbm/tapcanvas/pkg/provider"
	"github.com/mdsxbm/tapcanvas/pkg/provider/extract"
	"github.com/mdsxbm/tapcanvas/pkg/provider/openaicompat"
	"github.com/mdsxbm/tapcanvas/pkg/provider/vendorhttp"
)

const (
	Name           = "qwen"
	DefaultBaseURL = "https://dashscope.aliyuncs.com"

	text2ImagePath  = "api/v1/services/aigc/text2image/image-synthesis"
	image2ImagePath = "api/v1/services/aigc/image2image/image-synthesis"
	tasksPath       = "api/v1/tasks/"
	compatSegment   = "compatible-mode/v1"
)

// Config holds configuration for the DashScope adapter.
type Config struct {
	HTTP provider.HTTPSettings
	Poll poller.Config

	ChatModel   string
	VisionModel string
	ImageModel  string
	EditModel   string
}

// Adapter implements the qwen vendor.
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

// New creates a DashScope adapter.
func New(cfg Config) *Adapter {
	if cfg.ChatModel == "" {
		cfg.ChatModel = "qwen-plus"
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = "qwen-vl-max"
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = "wan2.2-t2i-flash"
	}
	if cfg.EditModel == "" {
		cfg.EditModel = "wanx2.1-imageedit"
	}
	cfg.HTTP = cfg.HTTP.WithDefaults(DefaultBaseURL)
	return &Adapter{cfg: cfg, shared: vendorhttp.NewShared(Name, cfg.HTTP)}
}

func (a *Adapter) Name() string { return Name }

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

// rootContext strips the API path a stored base URL may already carry, so
// both the native and the compatible-mode paths can be joined onto it.
func rootContext(pc *provider.Context) *provider.Context {
	if pc == nil {
		return nil
	}
	c := *pc
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	for _, suffix := range []string{"/" + compatSegment, "/api/v1"} {
		base = strings.TrimSuffix(base, suffix)
	}
	c.BaseURL = base
	return &c
}

func (a *Adapter) RunChat(ctx context.Context, pc *provider.Context, req *api.TaskRequest) (*api.TaskResult, error) {
	vc := a.shared.Client(rootContext(pc), compatSegment, false)
	c, err := openaicompat.Chat(ctx, vc, openaicompat.ChatRequest(pc.Model(req, a.cfg.ChatModel), req))
	if err != nil {
		return nil, err
	}
	return openaicompat.ChatResult(req.Kind, c), nil
}

func (a *Adapter) ImageToPrompt(ctx context.Context, pc *provider.Context, req *api.TaskRequest) (*api.TaskResult, error) {
	vc := a.shared.Client(rootContext(pc), compatSegment, false)
	c, err := openaicompat.Chat(ctx, vc, openaicompat.DescribeRequest(pc.Model(req, a.cfg.VisionModel), req))
	if err != nil {
		return nil, err
	}
	return openaicompat.ChatResult(req.Kind, c), nil
}

type synthesisRequest struct {
	Model      string         `json:"model"`
	Input      synthesisInput `json:"input"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type synthesisInput struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Function       string `json:"function,omitempty"`
	BaseImageURL   string `json:"base_image_url,omitempty"`
}

func parameters(req *api.TaskRequest) map[string]any {
	p := map[string]any{"n": 1}
	if req.Width > 0 && req.Height > 0 {
		p["size"] = fmt.Sprintf("%d*%d", req.Width, req.Height)
	}
	if req.Seed != nil {
		p["seed"] = *req.Seed
	}
	if req.Steps > 0 {
		p["steps"] = req.Steps
	}
	return p
}

func (a *Adapter) TextToImage(ctx context.Context, pc *provider.Context, req *api.TaskRequest) (*api.TaskResult, error) {
	body := &synthesisRequest{
		Model:      pc.Model(req, a.cfg.ImageModel),
		Input:      synthesisInput{Prompt: req.Prompt, NegativePrompt: req.NegativePrompt},
		Parameters: parameters(req),
	}
	return a.synthesize(ctx, pc, req, text2ImagePath, body)
}

// ImageEdit uses the description_edit function of the image2image service.
func (a *Adapter) ImageEdit(ctx context.Context, pc *provider.Context, req *api.TaskRequest) (*api.TaskResult, error) {
	function := req.Extras.String("function")
	if function == "" {
		function = "description_edit"
	}
	body := &synthesisRequest{
		Model: pc.Model(req, a.cfg.EditModel),
		Input: synthesisInput{
			Prompt:       req.Prompt,
			Function:     function,
			BaseImageURL: req.ImageRef(),
		},
		Parameters: parameters(req),
	}
	return a.synthesize(ctx, pc, req, image2ImagePath, body)
}

// synthesize creates the job and polls it to a terminal status. A create
// response that already carries results is used as is.
func (a *Adapter) synthesize(ctx context.Context, pc *provider.Context, req *api.TaskRequest, path string, body *synthesisRequest) (*api.TaskResult, error) {
	vc := a.shared.Client(rootContext(pc), "", false)
	resp, err := vc.Do(ctx, http.MethodPost, path, body, http.Header{"X-DashScope-Async": {"enable"}})
	if err != nil {
		return nil, err
	}
	latest := extract.FromBytes(resp.Body)
	if latest.JSON == nil {
		return nil, api.NewMalformedUpstreamError(Name, "create response is not JSON")
	}
	obs := poller.Observe(latest, nil)
	taskID := extract.JobID(latest)

	if !obs.Status.IsTerminal() {
		if taskID == "" {
			return nil, api.NewMalformedUpstreamError(Name, "create response has neither results nor output.task_id")
		}
		pc.Report(provider.ProgressUpdate{Status: api.TaskStatusRunning, Progress: 10, TaskID: taskID})

		tick := 0
		obs, err = poller.Poll(ctx, Name, a.cfg.Poll,
			func(ctx context.Context, _ int) (poller.Observation, error) {
				r, err := vc.Do(ctx, http.MethodGet, tasksPath+taskID, nil, nil)
				if err != nil {
					return poller.Observation{}, err
				}
				latest = extract.FromBytes(r.Body)
				return poller.Observe(latest, nil), nil
			},
			func(o poller.Observation) {
				tick++
				p := float64(min(90, 10+tick*4))
				if o.HasProgress {
					p = o.Progress
				}
				pc.Report(provider.ProgressUpdate{Status: api.TaskStatusRunning, Progress: p, TaskID: taskID})
			})
		if errors.Is(err, poller.ErrExhausted) {
			return nil, api.NewUpstreamError(Name, 0, fmt.Sprintf("task %s did not finish: %v", taskID, err),
				map[string]any{"taskId": taskID, "lastStatus": obs.Status})
		}
		if err != nil {
			return nil, err
		}
	}

	res := obs.Result(taskID, req.Kind, api.AssetTypeImage, "")
	if m, ok := latest.JSON.(map[string]any); ok && m["output"] != nil {
		res.SetRaw("output", m["output"])
	}
	return res, nil
}
