package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mdsxbm/tapcanvas/pkg/api"
	"github.com/mdsxbm/tapcanvas/pkg/provider/extract"
)

func observe(body string) Observation {
	return Observe(extract.FromBytes([]byte(body)), nil)
}

func TestObserve(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus api.TaskStatus
		wantURL    string
		wantReason string
	}{
		{"queued job", `{"id":"job-1","status":"queued"}`, api.TaskStatusQueued, "", ""},
		{"succeeded with url", `{"status":"succeeded","url":"https://v/a.mp4"}`, api.TaskStatusSucceeded, "https://v/a.mp4", ""},
		{"succeeded without url stays running", `{"status":"succeeded","content":"still rendering"}`, api.TaskStatusRunning, "", ""},
		{"markdown video in content", `{"status":"completed","content":"<video src=\"https://v/b.mp4\"></video>"}`, api.TaskStatusSucceeded, "https://v/b.mp4", ""},
		{"dashscope results", `{"output":{"task_status":"SUCCEEDED","results":[{"url":"https://v/x.png"}]}}`, api.TaskStatusSucceeded, "https://v/x.png", ""},
		{"dashscope failure", `{"output":{"task_status":"FAILED","results":[],"message":"nsfw"}}`, api.TaskStatusFailed, "", "nsfw"},
		{"failure reason verbatim", `{"status":"failed","failure_reason":"Content Policy Violation"}`, api.TaskStatusFailed, "", "Content Policy Violation"},
		{"wrapped failure keeps job reason", `{"code":0,"message":"success","data":{"status":"failed","failure_reason":"content policy violation"}}`, api.TaskStatusFailed, "", "content policy violation"},
		{"url without status", `{"url":"https://v/c.png"}`, api.TaskStatusSucceeded, "https://v/c.png", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := observe(tt.body)
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", got.Status, tt.wantStatus)
			}
			url := ""
			if len(got.URLs) > 0 {
				url = got.URLs[0]
			}
			if url != tt.wantURL {
				t.Errorf("URL = %q, want %q", url, tt.wantURL)
			}
			if got.FailureReason != tt.wantReason {
				t.Errorf("FailureReason = %q, want %q", got.FailureReason, tt.wantReason)
			}
		})
	}
}

func TestPollStopsOnTerminal(t *testing.T) {
	bodies := []string{
		`{"status":"queued"}`,
		`{"status":"running","progress":40}`,
		`{"status":"succeeded","url":"https://v/done.mp4"}`,
	}
	var ticks []Observation
	calls := 0
	obs, err := Poll(context.Background(), "veo", Config{Interval: time.Millisecond, MaxAttempts: 10},
		func(_ context.Context, attempt int) (Observation, error) {
			calls++
			if attempt != calls {
				t.Errorf("attempt = %d, want %d", attempt, calls)
			}
			return observe(bodies[attempt-1]), nil
		},
		func(o Observation) { ticks = append(ticks, o) })
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if obs.Status != api.TaskStatusSucceeded || obs.URLs[0] != "https://v/done.mp4" {
		t.Errorf("final = %+v", obs)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(ticks) != 2 || !ticks[1].HasProgress || ticks[1].Progress != 40 {
		t.Errorf("ticks = %+v", ticks)
	}
}

func TestPollExhausted(t *testing.T) {
	calls := 0
	obs, err := Poll(context.Background(), "qwen", Config{Interval: time.Millisecond, MaxAttempts: 3},
		func(context.Context, int) (Observation, error) {
			calls++
			return observe(`{"status":"running"}`), nil
		}, nil)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if obs.Status != api.TaskStatusRunning {
		t.Errorf("last status = %q", obs.Status)
	}
}

func TestPollWallTime(t *testing.T) {
	_, err := Poll(context.Background(), "qwen", Config{Interval: 50 * time.Millisecond, MaxAttempts: 100, MaxWait: 20 * time.Millisecond},
		func(context.Context, int) (Observation, error) {
			return observe(`{"status":"running"}`), nil
		}, nil)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}
}

func TestPollFetchErrorAborts(t *testing.T) {
	upstream := api.NewUpstreamError("qwen", 500, "boom", nil)
	calls := 0
	_, err := Poll(context.Background(), "qwen", Config{Interval: time.Millisecond, MaxAttempts: 5},
		func(context.Context, int) (Observation, error) {
			calls++
			return Observation{}, upstream
		}, nil)
	if !errors.Is(err, upstream) {
		t.Fatalf("err = %v, want upstream error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestPollCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, err := Poll(ctx, "veo", Config{Interval: time.Hour, MaxAttempts: 5},
		func(context.Context, int) (Observation, error) {
			cancel()
			return observe(`{"status":"running"}`), nil
		}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
