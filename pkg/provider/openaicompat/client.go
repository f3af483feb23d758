package openaicompat

import (
	"context"
	"net/http"

	"github.com/mdsxbm/tapcanvas/pkg/provider/vendorhttp"
)

// Chat posts req to chat/completions relative to vc's base URL, which is
// expected to already end in the version segment.
func Chat(ctx context.Context, vc *vendorhttp.Client, req *ChatCompletionRequest) (*Completion, error) {
	resp, err := vc.Do(ctx, http.MethodPost, "chat/completions", req, nil)
	if err != nil {
		return nil, err
	}
	return CollectCompletion(vc.Vendor(), resp)
}

// Images posts req to path (images/generations or images/edits).
func Images(ctx context.Context, vc *vendorhttp.Client, path string, req *ImageRequest) (*ImageResponse, error) {
	var out ImageResponse
	if err := vc.DoJSON(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
