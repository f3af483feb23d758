// Command mock-backend runs a deterministic imitation of the vendor APIs
// (OpenAI, DashScope, Veo and sora2api shapes) for local development and
// end-to-end testing. Point a provider row's base URL, or vendors.base_urls
// in the server config, at it.
//
// Configuration:
//
//	MOCK_PORT        - Listen port (default: 9090)
//	MOCK_STEPS       - Polls before an async job finishes (default: 2)
//	MOCK_REQUIRE_KEY - Reject requests without a bearer token (default: false)
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mdsxbm/tapcanvas/pkg/provider/fakevendor"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}
	steps, _ := strconv.Atoi(os.Getenv("MOCK_STEPS"))
	requireKey, _ := strconv.ParseBool(os.Getenv("MOCK_REQUIRE_KEY"))

	handler := fakevendor.New(fakevendor.Config{Steps: steps, RequireKey: requireKey})
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port, "steps", steps, "require_key", requireKey)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down", "requests", handler.Requests())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}
