// Package gemini adapts the Google Generative Language API
// (models/{model}:generateContent) for chat, image description and native
// image generation.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mdsxbm/tapcanvas/pkg/api"
	"github.com/mdsxbm/tapcanvas/pkg/provider"
	"github.com/mdsxbm/tapcanvas/pkg/provider/openaicompat"
	"github.com/mdsxbm/tapcanvas/pkg/provider/vendorhttp"
)

const (
	Name           = "gemini"
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	apiVersion     = "v1beta"
)

// Config holds configuration for the Gemini adapter.
type Config struct {
	HTTP        provider.HTTPSettings
	ChatModel   string
	ImageModel  string
	VisionModel string
}

// Adapter implements the Gemini vendor.
type Adapter struct {
	cfg    Config
	shared *vendorhttp.Shared
}

var (
	_ provider.Adapter        = (*Adapter)(nil)
	_ provider.ChatRunner     = (*Adapter)(nil)
	_ provider.ImageGenerator = (*Adapter)(nil)
	_ provider.ImageDescriber = (*Adapter)(nil)
)

// New creates a Gemini adapter.
func New(cfg Config) *Adapter {
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gemini-2.5-flash"
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = "gemini-2.5-flash-image"
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.ChatModel
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
			provider.CapImageToPrompt,
		},
		RequiresKey: true,
	}
}

// NormalizeModel ensures the "models/" resource prefix.
func NormalizeModel(model string) string {
	m := strings.Trim(strings.TrimSpace(model), "/")
	if strings.HasPrefix(m, "models/") {
		return m
	}
	return "models/" + m
}

func (a *Adapter) RunChat(ctx context.Context, pc *provider.Context, req *api.TaskRequest) (*api.TaskResult, error) {
	body := &generateContentRequest{
		Contents: []content{{Role: "user", Parts: userParts(req.Prompt, req.ImageRef())}},
	}
	if sp := req.SystemPrompt(); sp != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: sp}}}
	}
	if req.CfgScale > 0 || req.Seed != nil {
		gc := &generationConfig{Seed: req.Seed}
		if req.CfgScale > 0 {
			t := req.CfgScale
			gc.Temperature = &t
		}
		body.GenerationConfig = gc
	}
	resp, err := a.generate(ctx, pc, pc.Model(req, a.cfg.ChatModel), body, false)
	if err != nil {
		return nil, err
	}
	return textResult(req.Kind, resp)
}

func (a *Adapter) ImageToPrompt(ctx context.Context, pc *provider.Context, req *api.TaskRequest) (*api.TaskResult, error) {
	prompt := req.Prompt
	if prompt == "" {
		prompt = openaicompat.DescribePrompt
	}
	body := &generateContentRequest{
		Contents: []content{{Role: "user", Parts: userParts(prompt, req.ImageRef())}},
	}
	resp, err := a.generate(ctx, pc, pc.Model(req, a.cfg.VisionModel), body, false)
	if err != nil {
		return nil, err
	}
	return textResult(req.Kind, resp)
}

// TextToImage asks an image-capable model for IMAGE output; inline image
// parts come back base64 encoded and become data URL assets.
func (a *Adapter) TextToImage(ctx context.Context, pc *provider.Context, req *api.TaskRequest) (*api.TaskResult, error) {
	prompt := req.Prompt
	if req.NegativePrompt != "" {
		prompt += "\nAvoid: " + req.NegativePrompt
	}
	body := &generateContentRequest{
		Contents:         []content{{Role: "user", Parts: userParts(prompt, req.ImageRef())}},
		GenerationConfig: &generationConfig{ResponseModalities: []string{"TEXT", "IMAGE"}, Seed: req.Seed},
	}
	pc.Report(provider.ProgressUpdate{Status: api.TaskStatusRunning, Progress: 10, Message: "generating"})
	resp, err := a.generate(ctx, pc, pc.Model(req, a.cfg.ImageModel), body, true)
	if err != nil {
		return nil, err
	}

	res := &api.TaskResult{Kind: req.Kind, Status: api.TaskStatusSucceeded}
	var text strings.Builder
	for _, c := range resp.Candidates {
		for _, p := range c.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				res.Assets = append(res.Assets, api.TaskAsset{
					Type: api.AssetTypeImage,
					URL:  "data:" + p.InlineData.MimeType + ";base64," + p.InlineData.Data,
				})
			}
			text.WriteString(p.Text)
		}
	}
	if len(res.Assets) == 0 {
		return nil, api.NewMalformedUpstreamError(Name, "response carries no inline image"+blockSuffix(resp))
	}
	if s := strings.TrimSpace(text.String()); s != "" {
		res.SetRaw("text", s)
	}
	return res, nil
}

func (a *Adapter) generate(ctx context.Context, pc *provider.Context, model string, body *generateContentRequest, long bool) (*generateContentResponse, error) {
	vc := a.shared.Client(pc, apiVersion, long)
	vc.AuthHeader = func(h http.Header, key string) {
		if key != "" {
			h.Set("x-goog-api-key", key)
		}
	}
	var out generateContentResponse
	if err := vc.DoJSON(ctx, http.MethodPost, NormalizeModel(model)+":generateContent", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func textResult(kind api.TaskKind, resp *generateContentResponse) (*api.TaskResult, error) {
	if len(resp.Candidates) == 0 {
		return nil, api.NewMalformedUpstreamError(Name, "response has no candidates"+blockSuffix(resp))
	}
	var text strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	res := &api.TaskResult{Kind: kind, Status: api.TaskStatusSucceeded}
	res.SetRaw("text", strings.TrimSpace(text.String()))
	if resp.ModelVersion != "" {
		res.SetRaw("model", resp.ModelVersion)
	}
	if resp.UsageMetadata != nil {
		res.SetRaw("usage", resp.UsageMetadata)
	}
	return res, nil
}

func blockSuffix(resp *generateContentResponse) string {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return fmt.Sprintf(" (blocked: %s)", resp.PromptFeedback.BlockReason)
	}
	return ""
}

// userParts builds the user turn. Data URLs and bare base64 go inline;
// http(s) URLs are passed by reference.
func userParts(text, image string) []part {
	parts := []part{{Text: text}}
	switch {
	case image == "":
	case strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://"):
		parts = append(parts, part{FileData: &fileData{FileURI: image, MimeType: mimeFromExt(image)}})
	default:
		mime, data := splitDataURL(image)
		parts = append(parts, part{InlineData: &inlineData{MimeType: mime, Data: data}})
	}
	return parts
}

func splitDataURL(s string) (mime, data string) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "image/png", s
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "image/png", rest
	}
	mime = strings.TrimSuffix(meta, ";base64")
	if mime == "" {
		mime = "image/png"
	}
	return mime, payload
}

func mimeFromExt(u string) string {
	lower := strings.ToLower(u)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	switch {
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	}
	return "image/png"
}
