package fakevendor_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mdsxbm/tapcanvas/pkg/api"
	"github.com/mdsxbm/tapcanvas/pkg/poller"
	"github.com/mdsxbm/tapcanvas/pkg/provider"
	"github.com/mdsxbm/tapcanvas/pkg/provider/fakevendor"
	"github.com/mdsxbm/tapcanvas/pkg/provider/openai"
	"github.com/mdsxbm/tapcanvas/pkg/provider/qwen"
	"github.com/mdsxbm/tapcanvas/pkg/provider/sora2api"
	"github.com/mdsxbm/tapcanvas/pkg/provider/veo"
)

func newVendor(t *testing.T, steps int) (*fakevendor.Handler, *provider.Context) {
	t.Helper()
	h := fakevendor.New(fakevendor.Config{Steps: steps, RequireKey: true})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return h, &provider.Context{BaseURL: srv.URL, APIKey: "sk-test", UserID: "u1"}
}

func TestVeoJobLifecycle(t *testing.T) {
	_, pc := newVendor(t, 2)
	a := veo.New(veo.Config{})
	ctx := context.Background()

	created, err := a.TextToVideo(ctx, pc, &api.TaskRequest{Kind: api.TaskKindTextToVideo, Prompt: "waves"})
	if err != nil {
		t.Fatalf("TextToVideo: %v", err)
	}
	if created.Status != api.TaskStatusRunning || created.ID == "" {
		t.Fatalf("created = %+v", created)
	}

	first, err := a.FetchResult(ctx, pc, created.ID, "")
	if err != nil {
		t.Fatalf("FetchResult: %v", err)
	}
	if first.Status != api.TaskStatusRunning {
		t.Errorf("first poll status = %s, want running", first.Status)
	}

	done, err := a.FetchResult(ctx, pc, created.ID, "waves")
	if err != nil {
		t.Fatalf("FetchResult: %v", err)
	}
	if done.Status != api.TaskStatusSucceeded || len(done.Assets) != 1 {
		t.Fatalf("done = %+v", done)
	}
	if !strings.HasSuffix(done.Assets[0].URL, "/media/"+created.ID+".mp4") {
		t.Errorf("asset url = %s", done.Assets[0].URL)
	}
}

func TestSora2apiOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   api.TaskStatus
		assets int
	}{
		{name: "succeeded", prompt: "a cat", want: api.TaskStatusSucceeded, assets: 1},
		{name: "failed", prompt: "a cat " + fakevendor.MarkerFail, want: api.TaskStatusFailed},
		{name: "completed without url stays running", prompt: "a cat " + fakevendor.MarkerNoURL, want: api.TaskStatusRunning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, pc := newVendor(t, 1)
			a := sora2api.New(sora2api.Config{})
			ctx := context.Background()

			created, err := a.TextToVideo(ctx, pc, &api.TaskRequest{Kind: api.TaskKindTextToVideo, Prompt: tt.prompt})
			if err != nil {
				t.Fatalf("TextToVideo: %v", err)
			}
			res, err := a.FetchResult(ctx, pc, created.ID, tt.prompt)
			if err != nil {
				t.Fatalf("FetchResult: %v", err)
			}
			if res.Status != tt.want || len(res.Assets) != tt.assets {
				t.Errorf("result = %+v, want status %s with %d assets", res, tt.want, tt.assets)
			}
			if tt.want == api.TaskStatusFailed && res.RawString("failureReason") != fakevendor.FailureReason {
				t.Errorf("failure reason = %q", res.RawString("failureReason"))
			}
		})
	}
}

func TestQwenPollsToCompletion(t *testing.T) {
	h, pc := newVendor(t, 3)
	a := qwen.New(qwen.Config{Poll: poller.Config{Interval: 5 * time.Millisecond, MaxAttempts: 10}})

	res, err := a.TextToImage(context.Background(), pc, &api.TaskRequest{Kind: api.TaskKindTextToImage, Prompt: "lotus"})
	if err != nil {
		t.Fatalf("TextToImage: %v", err)
	}
	if res.Status != api.TaskStatusSucceeded || len(res.Assets) != 1 {
		t.Fatalf("result = %+v", res)
	}
	// one create plus three polls
	if got := h.Requests(); got != 4 {
		t.Errorf("requests = %d, want 4", got)
	}
}

func TestOpenAIImageAndChat(t *testing.T) {
	_, pc := newVendor(t, 1)
	a := openai.New(openai.Config{})
	ctx := context.Background()

	img, err := a.TextToImage(ctx, pc, &api.TaskRequest{Kind: api.TaskKindTextToImage, Prompt: "fox"})
	if err != nil {
		t.Fatalf("TextToImage: %v", err)
	}
	if len(img.Assets) != 1 || !strings.Contains(img.Assets[0].URL, "/media/") {
		t.Errorf("image result = %+v", img)
	}

	chat, err := a.RunChat(ctx, pc, &api.TaskRequest{Kind: api.TaskKindChat, Prompt: "hello"})
	if err != nil {
		t.Fatalf("RunChat: %v", err)
	}
	if got := chat.RawString("text"); got != "echo: hello" {
		t.Errorf("chat text = %q", got)
	}
}

func TestRejectsMissingKey(t *testing.T) {
	srv := httptest.NewServer(fakevendor.New(fakevendor.Config{RequireKey: true}))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/videos", "application/json", strings.NewReader(`{"prompt":"x"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestServesMedia(t *testing.T) {
	srv := httptest.NewServer(fakevendor.New(fakevendor.Config{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/media/a.png")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	if !strings.HasPrefix(string(body), "\x89PNG") {
		t.Errorf("body = %q", body)
	}
}
