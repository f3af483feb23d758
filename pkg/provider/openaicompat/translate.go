package openaicompat

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/mdsxbm/tapcanvas/pkg/api"
)

// DescribePrompt is the instruction used for image_to_prompt when the
// request carries no prompt of its own.
const DescribePrompt = "Describe this image in detail as a single prompt for an image generation model. Reply with the prompt only."

// EndUser derives the opaque end-user identifier sent in the "user" field.
// Internal user IDs never leave the process; an empty ID sends nothing.
func EndUser(userID string) string {
	if userID == "" {
		return ""
	}
	sum := sha256.Sum256([]byte("tapcanvas:" + userID))
	return hex.EncodeToString(sum[:16])
}

// ChatRequest translates a chat or prompt_refine task. An image reference in
// the extras becomes a multimodal content part.
func ChatRequest(model string, req *api.TaskRequest) *ChatCompletionRequest {
	var msgs []ChatMessage
	if sp := req.SystemPrompt(); sp != "" {
		msgs = append(msgs, ChatMessage{Role: "system", Content: sp})
	}
	msgs = append(msgs, userMessage(req.Prompt, req.ImageRef()))

	cr := &ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
		Seed:     req.Seed,
	}
	if req.CfgScale > 0 {
		t := req.CfgScale
		cr.Temperature = &t
	}
	return cr
}

// DescribeRequest translates an image_to_prompt task into a vision chat.
func DescribeRequest(model string, req *api.TaskRequest) *ChatCompletionRequest {
	prompt := req.Prompt
	if prompt == "" {
		prompt = DescribePrompt
	}
	return &ChatCompletionRequest{
		Model:    model,
		Messages: []ChatMessage{userMessage(prompt, req.ImageRef())},
	}
}

// ImageGenerationRequest translates a text_to_image or image_edit task.
func ImageGenerationRequest(model string, req *api.TaskRequest) *ImageRequest {
	return &ImageRequest{
		Model:  model,
		Prompt: req.Prompt,
		N:      1,
		Size:   Size(req.Width, req.Height),
		Image:  req.ImageRef(),
	}
}

// Size formats dimensions as "WxH"; empty when either is unset.
func Size(width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", width, height)
}

func userMessage(text, image string) ChatMessage {
	if image == "" {
		return ChatMessage{Role: "user", Content: text}
	}
	return ChatMessage{Role: "user", Content: []ContentPart{
		{Type: "text", Text: text},
		{Type: "image_url", ImageURL: &ImageURL{URL: image}},
	}}
}
