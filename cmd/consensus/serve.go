package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/rhuss/consensus/pkg/auth"
	"github.com/rhuss/consensus/pkg/config"
	"github.com/rhuss/consensus/pkg/mcpserver"
	"github.com/rhuss/consensus/pkg/observability"
	"github.com/rhuss/consensus/pkg/transport"
	transporthttp "github.com/rhuss/consensus/pkg/transport/http"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

// serve wires providers, pipelines, storage and auth into the HTTP server
// and runs it until ctx is done.
func serve(ctx context.Context, cfg *config.Config) error {
	reg, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	defer reg.Close()

	dispatcher, err := buildDispatcher(cfg, reg)
	if err != nil {
		return err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	srv, err := newServer(cfg, dispatcher, store)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

// newServer builds the HTTP server with metrics, MCP and auth applied
// according to cfg.
func newServer(cfg *config.Config, analyzer transport.Analyzer, store transport.AnalysisStore) (*transporthttp.Server, error) {
	chain, limiter, err := buildAuth(cfg)
	if err != nil {
		return nil, err
	}

	bypass := slices.Clone(auth.DefaultBypassEndpoints)
	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(cfg.Addr()),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	}

	if m := cfg.Observability.Metrics; m.Enabled {
		opts = append(opts, transporthttp.WithRoute("GET "+m.Path, promhttp.Handler()))
		bypass = append(bypass, m.Path)
	}

	var scopeExempt []string
	if cfg.MCP.Enabled {
		scopeExempt = append(scopeExempt, cfg.MCP.Path)
		mcp := mcpserver.New(analyzer, store,
			mcpserver.WithVersion(Version),
			mcpserver.WithMiddleware(transport.Recovery(), transport.RequestID(), transport.Logging(slog.Default())),
		)
		opts = append(opts, transporthttp.WithRoute(cfg.MCP.Path, mcp.Handler()))
		slog.Info("mcp endpoint enabled", "path", cfg.MCP.Path)
	}

	opts = append(opts, transporthttp.WithHTTPMiddleware(
		observability.MetricsMiddleware,
		auth.Middleware(chain, limiter, bypass),
		auth.RequireScope(scopeExempt...),
	))

	slog.Info("auth configured", "type", cfg.Auth.Type, "rate_limited", limiter != nil)
	return transporthttp.NewServer(analyzer, store, opts...), nil
}
