package api

import "testing"

func TestValidateSubmit(t *testing.T) {
	cfg := DefaultValidationConfig()
	tests := []struct {
		name      string
		req       SubmitTaskRequest
		wantParam string
	}{
		{
			name: "vendor target",
			req:  SubmitTaskRequest{Vendor: "qwen", Request: TaskRequest{Kind: TaskKindTextToImage, Prompt: "a red fox"}},
		},
		{
			name: "profile target",
			req:  SubmitTaskRequest{ProfileID: "p1", Request: TaskRequest{Kind: TaskKindChat, Prompt: "hi"}},
		},
		{
			name:      "no target",
			req:       SubmitTaskRequest{Request: TaskRequest{Kind: TaskKindChat, Prompt: "hi"}},
			wantParam: "vendor",
		},
		{
			name:      "both targets",
			req:       SubmitTaskRequest{Vendor: "qwen", ProfileID: "p1", Request: TaskRequest{Kind: TaskKindChat, Prompt: "hi"}},
			wantParam: "profileId",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSubmit(&tt.req, cfg)
			assertParam(t, err, tt.wantParam)
		})
	}
}

func TestValidateTaskRequest(t *testing.T) {
	cfg := DefaultValidationConfig()
	tests := []struct {
		name      string
		req       TaskRequest
		wantParam string
	}{
		{name: "chat", req: TaskRequest{Kind: TaskKindChat, Prompt: "hello"}},
		{name: "missing kind", req: TaskRequest{Prompt: "x"}, wantParam: "kind"},
		{name: "unknown kind", req: TaskRequest{Kind: "music", Prompt: "x"}, wantParam: "kind"},
		{name: "missing prompt", req: TaskRequest{Kind: TaskKindTextToImage, Prompt: "  "}, wantParam: "prompt"},
		{
			name: "image to prompt without prompt",
			req:  TaskRequest{Kind: TaskKindImageToPrompt, Extras: Extras{"imageUrl": "https://x/y.png"}},
		},
		{
			name:      "image to prompt without image",
			req:       TaskRequest{Kind: TaskKindImageToPrompt},
			wantParam: "extras.imageUrl",
		},
		{
			name:      "image edit without image",
			req:       TaskRequest{Kind: TaskKindImageEdit, Prompt: "make it blue"},
			wantParam: "extras.imageUrl",
		},
		{
			name: "image edit with inline data",
			req:  TaskRequest{Kind: TaskKindImageEdit, Prompt: "make it blue", Extras: Extras{"imageData": "data:image/png;base64,AAAA"}},
		},
		{name: "negative width", req: TaskRequest{Kind: TaskKindTextToImage, Prompt: "x", Width: -1}, wantParam: "width"},
		{name: "huge height", req: TaskRequest{Kind: TaskKindTextToImage, Prompt: "x", Height: 10000}, wantParam: "width"},
		{name: "too many steps", req: TaskRequest{Kind: TaskKindTextToImage, Prompt: "x", Steps: 500}, wantParam: "steps"},
		{name: "negative cfg", req: TaskRequest{Kind: TaskKindTextToImage, Prompt: "x", CfgScale: -2}, wantParam: "cfgScale"},
		{
			name:      "long duration",
			req:       TaskRequest{Kind: TaskKindTextToVideo, Prompt: "x", Extras: Extras{"durationSeconds": float64(600)}},
			wantParam: "extras.durationSeconds",
		},
		{
			name:      "bad orientation",
			req:       TaskRequest{Kind: TaskKindTextToVideo, Prompt: "x", Extras: Extras{"orientation": "diagonal"}},
			wantParam: "extras.orientation",
		},
		{
			name: "duration as string",
			req:  TaskRequest{Kind: TaskKindTextToVideo, Prompt: "x", Extras: Extras{"durationSeconds": "10s", "orientation": "Portrait"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertParam(t, ValidateTaskRequest(&tt.req, cfg), tt.wantParam)
		})
	}
}

func TestValidateFetchResult(t *testing.T) {
	if err := ValidateFetchResult(&FetchResultRequest{TaskID: "job-1"}); err != nil {
		t.Errorf("ValidateFetchResult() = %v, want nil", err)
	}
	assertParam(t, ValidateFetchResult(&FetchResultRequest{TaskID: " "}), "taskId")
}

func assertParam(t *testing.T, err *APIError, wantParam string) {
	t.Helper()
	if wantParam == "" {
		if err != nil {
			t.Fatalf("got error %v, want nil", err)
		}
		return
	}
	if err == nil {
		t.Fatalf("got nil, want error on %q", wantParam)
	}
	if err.Code != CodeInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, CodeInvalidRequest)
	}
	if err.Param != wantParam {
		t.Errorf("Param = %q, want %q", err.Param, wantParam)
	}
}
