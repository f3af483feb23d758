package extract

import (
	"testing"

	"github.com/mdsxbm/tapcanvas/pkg/api"
)

func TestMediaURLsChain(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"direct url", `{"id":"job-1","status":"succeeded","url":"https://cdn/v.mp4"}`, "https://cdn/v.mp4"},
		{"video_url field", `{"video_url":"https://cdn/v2.mp4"}`, "https://cdn/v2.mp4"},
		{"nested data url", `{"data":{"url":"https://cdn/v3.mp4"}}`, "https://cdn/v3.mp4"},
		{"video tag in content", `{"status":"succeeded","content":"done <video src='https://cdn/t.mp4' controls></video>"}`, "https://cdn/t.mp4"},
		{"markdown image in content", `{"content":"here ![img](https://cdn/i.png)"}`, "https://cdn/i.png"},
		{"markdown media link", `{"content":"[download](https://cdn/clip.mp4)"}`, "https://cdn/clip.mp4"},
		{"dashscope results", `{"output":{"task_status":"SUCCEEDED","results":[{"url":"https://v/x.png"}]}}`, "https://v/x.png"},
		{"openai data array", `{"data":[{"url":"https://oai/1.png"}]}`, "https://oai/1.png"},
		{"openai b64", `{"data":[{"b64_json":"QUJD"}]}`, "data:image/png;base64,QUJD"},
		{"chat choices", `{"choices":[{"message":{"content":"![a](https://c/1.webp)"}}]}`, "https://c/1.webp"},
		{"direct wins over markdown", `{"url":"https://a/1.mp4","content":"![x](https://b/2.png)"}`, "https://a/1.mp4"},
		{"plain text markdown", `see ![x](https://b/2.png "title")`, "https://b/2.png"},
		{"nothing", `{"status":"succeeded","content":"still rendering"}`, ""},
		{"non http url ignored", `{"url":"ftp://x/y"}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MediaURLs.First(FromBytes([]byte(tt.body))); got != tt.want {
				t.Errorf("First() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChainAllDedupes(t *testing.T) {
	p := FromBytes([]byte(`{"output":{"results":[{"url":"https://v/a.png"},{"url":"https://v/a.png"},{"url":"https://v/b.png"}]}}`))
	got := Chain{OutputResults}.All(p)
	if len(got) != 2 || got[0] != "https://v/a.png" || got[1] != "https://v/b.png" {
		t.Errorf("All() = %v", got)
	}
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		in   string
		want api.TaskStatus
	}{
		{"SUCCEEDED", api.TaskStatusSucceeded},
		{"completed", api.TaskStatusSucceeded},
		{"PENDING", api.TaskStatusQueued},
		{"in-progress", api.TaskStatusRunning},
		{"processing", api.TaskStatusRunning},
		{"FAILED", api.TaskStatusFailed},
		{"cancelled", api.TaskStatusFailed},
		{"", api.TaskStatusQueued},
		{"warming_up", api.TaskStatusRunning},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeStatus(tt.in); got != tt.want {
				t.Errorf("NormalizeStatus(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSettleStatus(t *testing.T) {
	if got := SettleStatus(api.TaskStatusSucceeded, ""); got != api.TaskStatusRunning {
		t.Errorf("succeeded without url = %q, want running", got)
	}
	if got := SettleStatus(api.TaskStatusSucceeded, "https://x"); got != api.TaskStatusSucceeded {
		t.Errorf("succeeded with url = %q, want succeeded", got)
	}
	if got := SettleStatus(api.TaskStatusFailed, ""); got != api.TaskStatusFailed {
		t.Errorf("failed = %q, want failed", got)
	}
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		name, body, want string
	}{
		{"top level", `{"status":"failed","failure_reason":"content policy"}`, "content policy"},
		{"dashscope output", `{"output":{"task_status":"FAILED","message":"quota exhausted"}}`, "quota exhausted"},
		{"error object", `{"error":{"message":"bad prompt"}}`, "bad prompt"},
		{"wrapped job beats wrapper message", `{"code":0,"message":"success","data":{"status":"failed","failure_reason":"content policy violation"}}`, "content policy violation"},
		{"none", `{"status":"failed"}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FailureReason(FromBytes([]byte(tt.body))); got != tt.want {
				t.Errorf("FailureReason() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		body   string
		want   float64
		wantOK bool
	}{
		{`{"progress":0.42}`, 0.42, true},
		{`{"progress":"55%"}`, 55, true},
		{`{"data":{"percent":12}}`, 12, true},
		{`{"status":"running"}`, 0, false},
	}
	for _, tt := range tests {
		got, ok := Progress(FromBytes([]byte(tt.body)))
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Progress(%s) = (%v, %v), want (%v, %v)", tt.body, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestRawStatus(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"top level", `{"id":"job-1","status":"queued"}`, "queued"},
		{"dashscope", `{"output":{"task_id":"t","task_status":"FAILED"}}`, "FAILED"},
		{"data state", `{"data":{"state":"processing"}}`, "processing"},
		{"none", `{"id":"x"}`, ""},
		{"text", `hello`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RawStatus(FromBytes([]byte(tt.body))); got != tt.want {
				t.Errorf("RawStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}
