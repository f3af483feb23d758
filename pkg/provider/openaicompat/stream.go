package openaicompat

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/mdsxbm/tapcanvas/pkg/api"
	"github.com/mdsxbm/tapcanvas/pkg/debug"
	"github.com/mdsxbm/tapcanvas/pkg/provider/vendorhttp"
)

// Completion is the assistant text of one chat call, however it was framed.
type Completion struct {
	ID    string
	Model string
	Text  string
	Usage *ChatUsage
}

// CollectCompletion reads a chat response that is either a JSON completion or
// an SSE transcript of chunks. Malformed chunks are logged and skipped; a
// body that yields neither fails with MalformedUpstreamResponse.
func CollectCompletion(vendor string, resp *vendorhttp.Response) (*Completion, error) {
	if resp.IsEventStream() {
		return collectChunks(vendor, resp.Body)
	}

	var cr ChatCompletionResponse
	if err := vendorhttp.DecodeJSON(vendor, resp.Body, &cr); err != nil {
		return nil, err
	}
	if len(cr.Choices) == 0 {
		return nil, api.NewMalformedUpstreamError(vendor, "chat response has no choices")
	}
	return &Completion{
		ID:    cr.ID,
		Model: cr.Model,
		Text:  cr.Choices[0].Message.Content,
		Usage: cr.Usage,
	}, nil
}

func collectChunks(vendor string, body []byte) (*Completion, error) {
	var (
		out    Completion
		text   strings.Builder
		chunks int
	)
	for _, payload := range vendorhttp.SSEData(body) {
		var chunk ChatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			slog.Warn("skipping malformed SSE chunk",
				"vendor", vendor,
				"error", err.Error(),
				"data", debug.Truncate(payload, 200),
			)
			continue
		}
		chunks++
		if out.ID == "" {
			out.ID = chunk.ID
		}
		if chunk.Model != "" {
			out.Model = chunk.Model
		}
		if chunk.Usage != nil {
			out.Usage = chunk.Usage
		}
		for _, c := range chunk.Choices {
			if c.Index == 0 && c.Delta.Content != nil {
				text.WriteString(*c.Delta.Content)
			}
		}
	}
	if chunks == 0 {
		return nil, api.NewMalformedUpstreamError(vendor, "event stream carried no completion chunks")
	}
	out.Text = text.String()
	return &out, nil
}
