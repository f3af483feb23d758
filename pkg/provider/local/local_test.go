package local

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mdsxbm/tapcanvas/pkg/api"
	"github.com/mdsxbm/tapcanvas/pkg/provider"
)

func TestRunChatWithoutKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("unexpected Authorization header %q", r.Header.Get("Authorization"))
		}
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"local answer"}}]}`))
	}))
	defer srv.Close()

	a := New(Config{HTTP: provider.HTTPSettings{DefaultBaseURL: srv.URL}})
	if a.Capabilities().RequiresKey {
		t.Fatal("local must not require a key")
	}
	res, err := a.RunChat(context.Background(), &provider.Context{}, &api.TaskRequest{Kind: api.TaskKindChat, Prompt: "hi"})
	if err != nil {
		t.Fatalf("RunChat: %v", err)
	}
	if res.RawString("text") != "local answer" {
		t.Errorf("text = %q", res.RawString("text"))
	}
}
