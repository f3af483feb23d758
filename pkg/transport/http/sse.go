package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mdsxbm/tapcanvas/pkg/api"
	"github.com/mdsxbm/tapcanvas/pkg/auth"
	"github.com/mdsxbm/tapcanvas/pkg/debug"
	"github.com/mdsxbm/tapcanvas/pkg/transport"
)

// initEvent is the first frame of every progress stream.
var initEvent = []byte(`{"type":"init"}`)

// sseWriter frames server-sent events on an http.ResponseWriter. It is
// owned by a single handler goroutine.
type sseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	return &sseWriter{w: w, rc: http.NewResponseController(w)}
}

// data writes one "data:" event.
func (s *sseWriter) data(payload []byte) error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return s.rc.Flush()
}

// ping writes a comment line that clients ignore.
func (s *sseWriter) ping() error {
	if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
		return err
	}
	return s.rc.Flush()
}

func (s *sseWriter) snapshot(snap api.ProgressSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.data(data)
}

// handleStream handles GET /tasks/stream. The subscription lives as long as
// the client connection.
func (a *Adapter) handleStream(w http.ResponseWriter, r *http.Request) {
	if a.progress == nil {
		transport.WriteAPIError(w, api.NewNotFoundError("progress streaming is disabled"))
		return
	}
	ctx := r.Context()
	userID := auth.UserID(ctx)

	sub := a.progress.Subscribe(ctx, userID)
	defer sub.Close()

	sw := newSSEWriter(w)
	if err := sw.data(initEvent); err != nil {
		return
	}

	ticker := time.NewTicker(a.config.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sw.ping(); err != nil {
				return
			}
		case snap, ok := <-sub.C():
			if !ok {
				return
			}
			if err := sw.snapshot(snap); err != nil {
				debug.Log(debug.Transport, "stream write failed", "user", userID, "error", err)
				return
			}
		}
	}
}
