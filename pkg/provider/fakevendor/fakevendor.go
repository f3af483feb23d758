// Package fakevendor serves deterministic imitations of the vendor APIs the
// adapters talk to, for integration tests and local development.
//
// One handler answers every vendor's paths:
//
//	POST /v1/chat/completions                       OpenAI, sora2api, local
//	POST /compatible-mode/v1/chat/completions       Qwen chat
//	POST /v1/images/generations, /v1/images/edits   OpenAI images
//	POST /api/v1/services/aigc/*/image-synthesis    Qwen async create
//	GET  /api/v1/tasks/{id}                         Qwen task poll
//	POST /v1/video/create, GET /v1/video/query      Veo
//	POST /v1/videos, GET /v1/videos/{id}            sora2api
//	GET  /media/{name}                              generated media bytes
//
// Async jobs report running until they have been polled Steps times. Prompt
// markers steer the outcome: "[fail]" fails the job and "[nourl]" finishes it
// without a media URL.
package fakevendor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// MarkerFail makes an async job end in a vendor failure.
	MarkerFail = "[fail]"
	// MarkerNoURL makes an async job succeed without any media URL.
	MarkerNoURL = "[nourl]"

	// FailureReason is the vendor message reported for failed jobs.
	FailureReason = "content policy violation"
)

// Config controls the fake's behavior.
type Config struct {
	// Steps is how many polls a job stays running before it finishes.
	Steps int

	// RequireKey rejects requests without a bearer token.
	RequireKey bool
}

// Handler is an http.Handler imitating the supported vendors.
type Handler struct {
	cfg  Config
	mux  *http.ServeMux
	seq  atomic.Int64
	mu   sync.Mutex
	jobs map[string]*job

	requests atomic.Int64
}

type job struct {
	prompt string
	polls  int
}

var _ http.Handler = (*Handler)(nil)

// New creates a Handler. Steps below 1 default to 2.
func New(cfg Config) *Handler {
	if cfg.Steps < 1 {
		cfg.Steps = 2
	}
	h := &Handler{cfg: cfg, mux: http.NewServeMux(), jobs: make(map[string]*job)}

	h.mux.HandleFunc("POST /v1/chat/completions", h.handleChat)
	h.mux.HandleFunc("POST /compatible-mode/v1/chat/completions", h.handleChat)
	h.mux.HandleFunc("POST /v1/images/generations", h.handleImages)
	h.mux.HandleFunc("POST /v1/images/edits", h.handleImages)
	h.mux.HandleFunc("POST /api/v1/services/aigc/text2image/image-synthesis", h.handleSynthesis)
	h.mux.HandleFunc("POST /api/v1/services/aigc/image2image/image-synthesis", h.handleSynthesis)
	h.mux.HandleFunc("GET /api/v1/tasks/{id}", h.handleDashScopeTask)
	h.mux.HandleFunc("POST /v1/video/create", h.handleVideoCreate)
	h.mux.HandleFunc("GET /v1/video/query", h.handleVeoQuery)
	h.mux.HandleFunc("POST /v1/videos", h.handleVideoCreate)
	h.mux.HandleFunc("GET /v1/videos/{id}", h.handleSoraVideo)
	h.mux.HandleFunc("GET /media/{name}", h.handleMedia)
	h.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return h
}

// Requests returns how many vendor API calls were served, media excluded.
func (h *Handler) Requests() int64 { return h.requests.Load() }

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/media/") && r.URL.Path != "/healthz" {
		h.requests.Add(1)
		if h.cfg.RequireKey && !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
	}
	h.mux.ServeHTTP(w, r)
}

// --- OpenAI-shaped endpoints ---

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content any    `json:"content"`
	} `json:"messages"`
	Stream bool `json:"stream"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	id := h.nextID("chatcmpl")
	prompt := lastUserText(req.Messages)

	if !req.Stream {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":     id,
			"object": "chat.completion",
			"model":  req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": "echo: " + prompt},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 8, "completion_tokens": 4, "total_tokens": 12},
		})
		return
	}

	// Streamed completions carry the image the way sora2api does.
	text := fmt.Sprintf("![Generated Image](%s)", mediaURL(r, id+".png"))
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	for _, part := range []string{"", text} {
		chunk := map[string]any{
			"id":      id,
			"model":   req.Model,
			"choices": []map[string]any{{"index": 0, "delta": map[string]any{"content": part}}},
		}
		data, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", data)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func (h *Handler) handleImages(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if strings.Contains(req.Prompt, MarkerFail) {
		writeError(w, http.StatusBadRequest, FailureReason)
		return
	}
	id := h.nextID("img")
	writeJSON(w, http.StatusOK, map[string]any{
		"created": time.Now().Unix(),
		"data":    []map[string]any{{"url": mediaURL(r, id+".png"), "revised_prompt": req.Prompt}},
	})
}

// --- DashScope ---

func (h *Handler) handleSynthesis(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input struct {
			Prompt string `json:"prompt"`
		} `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	id := h.start("ds", req.Input.Prompt)
	writeJSON(w, http.StatusOK, map[string]any{
		"request_id": h.nextID("req"),
		"output":     map[string]any{"task_id": id, "task_status": "PENDING"},
	})
}

func (h *Handler) handleDashScopeTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	j, ok := h.poll(id)
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	output := map[string]any{"task_id": id}
	switch h.state(j) {
	case stateRunning:
		output["task_status"] = "RUNNING"
	case stateFailed:
		output["task_status"] = "FAILED"
		output["code"] = "DataInspectionFailed"
		output["message"] = FailureReason
	case stateNoURL:
		output["task_status"] = "SUCCEEDED"
	default:
		output["task_status"] = "SUCCEEDED"
		output["results"] = []map[string]any{{"url": mediaURL(r, id+".png")}}
	}
	writeJSON(w, http.StatusOK, map[string]any{"request_id": h.nextID("req"), "output": output})
}

// --- Video vendors ---

func (h *Handler) handleVideoCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	id := h.start("video", req.Prompt)
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": "queued"})
}

func (h *Handler) handleVeoQuery(w http.ResponseWriter, r *http.Request) {
	h.writeVideo(w, r, r.URL.Query().Get("id"), "video_url")
}

func (h *Handler) handleSoraVideo(w http.ResponseWriter, r *http.Request) {
	h.writeVideo(w, r, r.PathValue("id"), "url")
}

func (h *Handler) writeVideo(w http.ResponseWriter, r *http.Request, id, urlKey string) {
	j, ok := h.poll(id)
	if !ok {
		writeError(w, http.StatusNotFound, "video not found")
		return
	}
	body := map[string]any{"id": id}
	switch h.state(j) {
	case stateRunning:
		body["status"] = "processing"
		body["progress"] = j.polls * 100 / (h.cfg.Steps + 1)
	case stateFailed:
		body["status"] = "failed"
		body["fail_reason"] = FailureReason
	case stateNoURL:
		body["status"] = "completed"
		body["progress"] = 100
	default:
		body["status"] = "completed"
		body["progress"] = 100
		body[urlKey] = mediaURL(r, id+".mp4")
		body["thumbnail_url"] = mediaURL(r, id+".png")
	}
	writeJSON(w, http.StatusOK, body)
}

// --- Media ---

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func (h *Handler) handleMedia(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	switch path.Ext(name) {
	case ".png":
		w.Header().Set("Content-Type", "image/png")
		w.Write(append(append([]byte{}, pngHeader...), name...))
	case ".mp4":
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("\x00\x00\x00\x18ftypmp42" + name))
	default:
		http.NotFound(w, r)
	}
}

// --- Job bookkeeping ---

type jobState int

const (
	stateRunning jobState = iota
	stateSucceeded
	stateFailed
	stateNoURL
)

func (h *Handler) start(prefix, prompt string) string {
	id := h.nextID(prefix)
	h.mu.Lock()
	h.jobs[id] = &job{prompt: prompt}
	h.mu.Unlock()
	return id
}

// poll counts one status query and returns a copy of the job.
func (h *Handler) poll(id string) (job, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	j, ok := h.jobs[id]
	if !ok {
		return job{}, false
	}
	j.polls++
	return *j, true
}

func (h *Handler) state(j job) jobState {
	if j.polls < h.cfg.Steps {
		return stateRunning
	}
	switch {
	case strings.Contains(j.prompt, MarkerFail):
		return stateFailed
	case strings.Contains(j.prompt, MarkerNoURL):
		return stateNoURL
	}
	return stateSucceeded
}

func (h *Handler) nextID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, h.seq.Add(1))
}

func lastUserText(msgs []struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != "user" {
			continue
		}
		switch c := msgs[i].Content.(type) {
		case string:
			return c
		case []any:
			for _, part := range c {
				if m, ok := part.(map[string]any); ok && m["type"] == "text" {
					if s, ok := m["text"].(string); ok {
						return s
					}
				}
			}
		}
	}
	return ""
}

func mediaURL(r *http.Request, name string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/media/%s", scheme, r.Host, name)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"message": message, "type": "invalid_request_error"},
	})
}
