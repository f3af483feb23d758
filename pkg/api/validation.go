package api

import (
	"fmt"
	"strings"
)

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxPromptLength int
	MaxDimension    int
	MaxSteps        int
	MaxDuration     int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxPromptLength: 32 * 1024,
		MaxDimension:    4096,
		MaxSteps:        150,
		MaxDuration:     60,
	}
}

// ValidateSubmit checks a POST /tasks body. It returns an *APIError describing
// the first validation failure, or nil if the body is valid.
func ValidateSubmit(req *SubmitTaskRequest, cfg ValidationConfig) *APIError {
	vendor := strings.TrimSpace(req.Vendor)
	profile := strings.TrimSpace(req.ProfileID)
	if vendor == "" && profile == "" {
		return NewInvalidRequestError("vendor", "either vendor or profileId is required")
	}
	if vendor != "" && profile != "" {
		return NewInvalidRequestError("profileId", "vendor and profileId are mutually exclusive")
	}
	return ValidateTaskRequest(&req.Request, cfg)
}

// ValidateTaskRequest checks a TaskRequest for validity.
func ValidateTaskRequest(req *TaskRequest, cfg ValidationConfig) *APIError {
	if req.Kind == "" {
		return NewInvalidRequestError("kind", "kind is required")
	}
	if !req.Kind.Valid() {
		return NewInvalidRequestError("kind", fmt.Sprintf("unsupported task kind %q", req.Kind))
	}

	switch req.Kind {
	case TaskKindImageToPrompt:
		if req.ImageRef() == "" {
			return NewInvalidRequestError("extras.imageUrl", "image_to_prompt requires imageUrl or imageData")
		}
	case TaskKindImageEdit, TaskKindImageToVideo:
		if req.ImageRef() == "" {
			return NewInvalidRequestError("extras.imageUrl", fmt.Sprintf("%s requires imageUrl or imageData", req.Kind))
		}
		if strings.TrimSpace(req.Prompt) == "" {
			return NewInvalidRequestError("prompt", "prompt is required")
		}
	default:
		if strings.TrimSpace(req.Prompt) == "" {
			return NewInvalidRequestError("prompt", "prompt is required")
		}
	}

	if cfg.MaxPromptLength > 0 && len(req.Prompt) > cfg.MaxPromptLength {
		return NewInvalidRequestError("prompt",
			fmt.Sprintf("prompt exceeds maximum of %d bytes", cfg.MaxPromptLength))
	}

	if req.Width < 0 || req.Height < 0 {
		return NewInvalidRequestError("width", "width and height must not be negative")
	}
	if cfg.MaxDimension > 0 && (req.Width > cfg.MaxDimension || req.Height > cfg.MaxDimension) {
		return NewInvalidRequestError("width",
			fmt.Sprintf("width and height must not exceed %d", cfg.MaxDimension))
	}

	if req.Steps < 0 || (cfg.MaxSteps > 0 && req.Steps > cfg.MaxSteps) {
		return NewInvalidRequestError("steps",
			fmt.Sprintf("steps must be between 0 and %d", cfg.MaxSteps))
	}

	if req.CfgScale < 0 {
		return NewInvalidRequestError("cfgScale", "cfgScale must not be negative")
	}

	if d := req.DurationSeconds(); d < 0 || (cfg.MaxDuration > 0 && d > cfg.MaxDuration) {
		return NewInvalidRequestError("extras.durationSeconds",
			fmt.Sprintf("durationSeconds must be between 0 and %d", cfg.MaxDuration))
	}

	if o := req.Orientation(); o != "" && o != "portrait" && o != "landscape" && o != "square" {
		return NewInvalidRequestError("extras.orientation", "orientation must be portrait, landscape or square")
	}

	return nil
}

// ValidateFetchResult checks the body of a client-driven poll request.
func ValidateFetchResult(req *FetchResultRequest) *APIError {
	if strings.TrimSpace(req.TaskID) == "" {
		return NewInvalidRequestError("taskId", "taskId is required")
	}
	return nil
}
