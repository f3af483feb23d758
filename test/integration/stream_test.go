package integration

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/mdsxbm/tapcanvas/pkg/api"
)

func TestStreamDeliversLifecycle(t *testing.T) {
	alice := openStream(t, keyAlice)
	if ev := nextEvent(t, alice, 2*time.Second); ev.Type != "init" {
		t.Fatalf("first event = %+v, want init", ev)
	}
	bob := openStream(t, keyBob)
	if ev := nextEvent(t, bob, 2*time.Second); ev.Type != "init" {
		t.Fatalf("first event = %+v, want init", ev)
	}
	waitSubscribed(t, "alice")
	waitSubscribed(t, "bob")

	res := submit(t, keyAlice, api.SubmitTaskRequest{
		Vendor:  "openai",
		Request: nodeRequest(api.TaskKindTextToImage, "lighthouse at dusk", "node-1"),
	})
	if res.Status != api.TaskStatusSucceeded {
		t.Fatalf("result = %+v", res)
	}

	var statuses []api.TaskStatus
	var last sseEvent
	for last.Status != api.TaskStatusSucceeded {
		last = nextEvent(t, alice, 2*time.Second)
		if last.NodeID != "node-1" || last.Vendor != "openai" {
			t.Fatalf("unexpected event %+v", last)
		}
		statuses = append(statuses, last.Status)
	}
	if statuses[0] != api.TaskStatusQueued {
		t.Errorf("statuses = %v, want queued first", statuses)
	}
	if last.Progress == nil || *last.Progress != 100 {
		t.Errorf("final progress = %v", last.Progress)
	}
	if len(last.Assets) != 1 || last.Assets[0].URL != res.Assets[0].URL {
		t.Errorf("final assets = %+v, want %+v", last.Assets, res.Assets)
	}

	select {
	case ev := <-bob:
		t.Errorf("bob received %+v", ev)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestStreamAcceptsQueryToken(t *testing.T) {
	resp := getURL(t, "/tasks/stream?access_token="+keyAlice, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestPendingForStoreOnlyVendor(t *testing.T) {
	alice := openStream(t, keyAlice)
	nextEvent(t, alice, 2*time.Second)
	waitSubscribed(t, "alice")

	created := submit(t, keyAlice, api.SubmitTaskRequest{
		Vendor:  "veo",
		Request: nodeRequest(api.TaskKindTextToVideo, "drone shot of a canyon", "node-veo"),
	})
	if created.Status != api.TaskStatusRunning {
		t.Fatalf("created = %+v", created)
	}

	resp := getURL(t, "/tasks/pending?vendor=veo", keyAlice)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp))
	}
	var pending []api.ProgressSnapshot
	decodeJSON(t, resp, &pending)

	var snap *api.ProgressSnapshot
	for i := range pending {
		if pending[i].NodeID == "node-veo" {
			snap = &pending[i]
		}
	}
	if snap == nil {
		t.Fatalf("pending = %+v, want node-veo", pending)
	}
	if snap.Status != api.TaskStatusRunning || snap.TaskID != created.ID {
		t.Errorf("snapshot = %+v", snap)
	}

	// Store-only vendors are not pushed live.
	select {
	case ev := <-alice:
		if ev.Vendor == "veo" {
			t.Errorf("veo snapshot pushed live: %+v", ev)
		}
	case <-time.After(150 * time.Millisecond):
	}

	resp = getURL(t, "/tasks/pending", keyBob)
	var bobPending []api.ProgressSnapshot
	decodeJSON(t, resp, &bobPending)
	if len(bobPending) != 0 {
		t.Errorf("bob pending = %+v", bobPending)
	}
}
