// Command mock-backend runs a deterministic Chat Completions and Responses
// API server for demos and integration tests. Completions are JSON objects
// shaped for the stage the prompt belongs to.
//
// Failure and latency are simulated per request, either with headers or
// with a suffix on the requested model name:
//
//	X-Mock-Fail: 429         respond with the given HTTP status
//	X-Mock-Delay: 2s         wait before responding
//	<model>-fail-429         same as X-Mock-Fail: 429 (also -fail-500, -fail-401)
//	<model>-slow             wait MOCK_SLOW_DELAY before responding
//	<model>-garbage          answer with text that is not JSON
//	<model>-dissent          answer with an output unlike every other model
//
// Configuration:
//
//	MOCK_PORT       - Listen port (default: 9090)
//	MOCK_MODELS     - Comma-separated models listed by /v1/models (default: mock-model)
//	MOCK_SLOW_DELAY - Delay of -slow models (default: 3s)
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

func main() {
	port := envOrDefault("MOCK_PORT", "9090")
	slowDelay, err := time.ParseDuration(envOrDefault("MOCK_SLOW_DELAY", "3s"))
	if err != nil {
		slog.Error("invalid MOCK_SLOW_DELAY", "error", err)
		os.Exit(1)
	}
	models := strings.Split(envOrDefault("MOCK_MODELS", "mock-model"), ",")

	srv := &http.Server{Addr: ":" + port, Handler: newHandler(models, slowDelay)}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port, "models", models)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
