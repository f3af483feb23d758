package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mdsxbm/tapcanvas/pkg/api"
	"github.com/mdsxbm/tapcanvas/pkg/provider"
	"github.com/mdsxbm/tapcanvas/pkg/provider/openaicompat"
)

func TestTextToImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/generations" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-own" {
			t.Errorf("Authorization = %q", got)
		}
		var body openaicompat.ImageRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Model != "gpt-image-1" || body.Prompt != "a red fox" || body.Size != "1024x1024" {
			t.Errorf("body = %+v", body)
		}
		_, _ = w.Write([]byte(`{"created":1,"data":[{"url":"https://oai/fox.png"}]}`))
	}))
	defer srv.Close()

	var updates []provider.ProgressUpdate
	pc := &provider.Context{BaseURL: srv.URL + "/", APIKey: "sk-own", OnProgress: func(u provider.ProgressUpdate) { updates = append(updates, u) }}
	res, err := New(Config{}).TextToImage(context.Background(), pc, &api.TaskRequest{
		Kind: api.TaskKindTextToImage, Prompt: "a red fox", Width: 1024, Height: 1024,
	})
	if err != nil {
		t.Fatalf("TextToImage: %v", err)
	}
	if res.Status != api.TaskStatusSucceeded || len(res.Assets) != 1 || res.Assets[0].URL != "https://oai/fox.png" {
		t.Errorf("result = %+v", res)
	}
	if len(updates) != 1 {
		t.Errorf("updates = %+v", updates)
	}
}

func TestImageEditPassesImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/edits" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body openaicompat.ImageRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Image != "https://x/src.png" {
			t.Errorf("image = %q", body.Image)
		}
		_, _ = w.Write([]byte(`{"data":[{"b64_json":"AAA"}]}`))
	}))
	defer srv.Close()

	res, err := New(Config{}).ImageEdit(context.Background(), &provider.Context{BaseURL: srv.URL + "/v1", APIKey: "k"}, &api.TaskRequest{
		Kind: api.TaskKindImageEdit, Prompt: "make it blue", Extras: api.Extras{api.ExtraImageURL: "https://x/src.png"},
	})
	if err != nil {
		t.Fatalf("ImageEdit: %v", err)
	}
	if res.Assets[0].URL != "data:image/png;base64,AAA" {
		t.Errorf("asset = %+v", res.Assets[0])
	}
}

func TestRunChatUsesProfileModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body openaicompat.ChatCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Model != "gpt-4.1" {
			t.Errorf("model = %q", body.Model)
		}
		if body.User == "u1" || body.User != openaicompat.EndUser("u1") {
			t.Errorf("user = %q, want the hashed end-user id", body.User)
		}
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"hi"}}]}`))
	}))
	defer srv.Close()

	pc := &provider.Context{BaseURL: srv.URL, APIKey: "k", UserID: "u1", ModelKey: "gpt-4.1"}
	res, err := New(Config{}).RunChat(context.Background(), pc, &api.TaskRequest{Kind: api.TaskKindChat, Prompt: "hello"})
	if err != nil {
		t.Fatalf("RunChat: %v", err)
	}
	if res.RawString("text") != "hi" {
		t.Errorf("raw = %v", res.Raw)
	}
}

func TestUpstreamErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
	}))
	defer srv.Close()

	_, err := New(Config{}).RunChat(context.Background(), &provider.Context{BaseURL: srv.URL, APIKey: "bad"},
		&api.TaskRequest{Kind: api.TaskKindChat, Prompt: "x"})
	apiErr, ok := api.AsAPIError(err)
	if !ok || apiErr.Code != api.CodeUpstreamError || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("err = %v", err)
	}
	if apiErr.Message != "Incorrect API key provided" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestCapabilitiesMatchRegistry(t *testing.T) {
	if _, err := provider.NewRegistry(New(Config{})); err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
}
