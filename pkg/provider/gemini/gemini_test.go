package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mdsxbm/tapcanvas/pkg/api"
	"github.com/mdsxbm/tapcanvas/pkg/provider"
)

func TestNormalizeModel(t *testing.T) {
	tests := map[string]string{
		"gemini-2.5-flash":         "models/gemini-2.5-flash",
		"models/gemini-2.5-flash":  "models/gemini-2.5-flash",
		" /gemini-2.5-pro/ ":       "models/gemini-2.5-pro",
		"models/gemini-2.5-flash/": "models/gemini-2.5-flash",
	}
	for in, want := range tests {
		if got := NormalizeModel(in); got != want {
			t.Errorf("NormalizeModel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRunChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-2.5-pro:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "g-key" {
			t.Errorf("api key header = %q", got)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("bearer header should not be sent")
		}
		var body generateContentRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.SystemInstruction == nil || body.SystemInstruction.Parts[0].Text != "terse" {
			t.Errorf("system instruction = %+v", body.SystemInstruction)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello "},{"text":"there"}]}}],"modelVersion":"gemini-2.5-pro"}`))
	}))
	defer srv.Close()

	pc := &provider.Context{BaseURL: srv.URL + "/v1beta/", APIKey: "g-key", ModelKey: "gemini-2.5-pro"}
	res, err := New(Config{}).RunChat(context.Background(), pc, &api.TaskRequest{
		Kind: api.TaskKindChat, Prompt: "hi", Extras: api.Extras{api.ExtraSystemPrompt: "terse"},
	})
	if err != nil {
		t.Fatalf("RunChat: %v", err)
	}
	if res.RawString("text") != "Hello there" {
		t.Errorf("text = %q", res.RawString("text"))
	}
}

func TestTextToImageInlineData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body generateContentRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.GenerationConfig == nil || len(body.GenerationConfig.ResponseModalities) != 2 {
			t.Errorf("generation config = %+v", body.GenerationConfig)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"here"},{"inlineData":{"mimeType":"image/png","data":"iVBOR"}}]}}]}`))
	}))
	defer srv.Close()

	res, err := New(Config{}).TextToImage(context.Background(), &provider.Context{BaseURL: srv.URL, APIKey: "k"},
		&api.TaskRequest{Kind: api.TaskKindTextToImage, Prompt: "a red fox"})
	if err != nil {
		t.Fatalf("TextToImage: %v", err)
	}
	if len(res.Assets) != 1 || res.Assets[0].URL != "data:image/png;base64,iVBOR" {
		t.Errorf("assets = %+v", res.Assets)
	}
}

func TestTextToImageBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer srv.Close()

	_, err := New(Config{}).TextToImage(context.Background(), &provider.Context{BaseURL: srv.URL, APIKey: "k"},
		&api.TaskRequest{Kind: api.TaskKindTextToImage, Prompt: "x"})
	if !api.HasCode(err, api.CodeMalformedUpstreamResponse) {
		t.Fatalf("err = %v", err)
	}
}

func TestUserParts(t *testing.T) {
	parts := userParts("describe", "data:image/jpeg;base64,/9j/4AAQ")
	if parts[1].InlineData == nil || parts[1].InlineData.MimeType != "image/jpeg" || parts[1].InlineData.Data != "/9j/4AAQ" {
		t.Errorf("inline part = %+v", parts[1])
	}
	parts = userParts("describe", "https://x/a.webp?sig=1")
	if parts[1].FileData == nil || parts[1].FileData.MimeType != "image/webp" {
		t.Errorf("file part = %+v", parts[1])
	}
	if got := userParts("only text", ""); len(got) != 1 {
		t.Errorf("parts = %+v", got)
	}
}
