package integration

import (
	"net/http"
	"strings"
	"testing"
)

func TestHealthEndpoint(t *testing.T) {
	resp := getURL(t, "/healthz", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	body := readBody(t, resp)
	if !strings.Contains(body, "ok") {
		t.Errorf("body = %q, want to contain 'ok'", body)
	}
}

func TestReadinessReportsChecks(t *testing.T) {
	// Readiness is on the auth bypass list as well.
	resp := getURL(t, "/readyz", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp))
	}

	var checks map[string]string
	decodeJSON(t, resp, &checks)
	if checks["storage"] != "ok" {
		t.Errorf("checks = %v, want storage ok", checks)
	}
}

func TestTaskRoutesRequireAuth(t *testing.T) {
	for _, path := range []string{"/tasks/pending", "/tasks/stream"} {
		resp := getURL(t, path, "")
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s without key: expected 401, got %d", path, resp.StatusCode)
		}
	}

	resp := getURL(t, "/tasks/pending", "not-a-key")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unknown key: expected 401, got %d", resp.StatusCode)
	}
}
