package openaicompat

import (
	"strings"

	"github.com/mdsxbm/tapcanvas/pkg/api"
)

// ChatResult wraps a completion as a succeeded text task. Chat produces no
// assets; the text travels in raw.text.
func ChatResult(kind api.TaskKind, c *Completion) *api.TaskResult {
	res := &api.TaskResult{
		ID:     c.ID,
		Kind:   kind,
		Status: api.TaskStatusSucceeded,
	}
	res.SetRaw("text", strings.TrimSpace(c.Text))
	if c.Model != "" {
		res.SetRaw("model", c.Model)
	}
	if c.Usage != nil {
		res.SetRaw("usage", c.Usage)
	}
	return res
}

// ImageResult converts an images response. base64 payloads become data URLs
// so rehosting can upload them like any other source.
func ImageResult(vendor string, kind api.TaskKind, resp *ImageResponse) (*api.TaskResult, error) {
	res := &api.TaskResult{Kind: kind, Status: api.TaskStatusSucceeded}
	for _, d := range resp.Data {
		url := d.URL
		if url == "" && d.B64JSON != "" {
			url = "data:image/png;base64," + d.B64JSON
		}
		if url == "" {
			continue
		}
		res.Assets = append(res.Assets, api.TaskAsset{Type: api.AssetTypeImage, URL: url})
		if d.RevisedPrompt != "" {
			res.SetRaw("revisedPrompt", d.RevisedPrompt)
		}
	}
	if len(res.Assets) == 0 {
		return nil, api.NewMalformedUpstreamError(vendor, "image response has no url or b64_json")
	}
	return res, nil
}
