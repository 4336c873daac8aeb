package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rhuss/consensus/pkg/agent/template"
	"github.com/rhuss/consensus/pkg/auth"
	"github.com/rhuss/consensus/pkg/auth/apikey"
	"github.com/rhuss/consensus/pkg/auth/jwt"
	"github.com/rhuss/consensus/pkg/auth/noop"
	"github.com/rhuss/consensus/pkg/config"
	"github.com/rhuss/consensus/pkg/engine"
	"github.com/rhuss/consensus/pkg/observability"
	"github.com/rhuss/consensus/pkg/provider"
	"github.com/rhuss/consensus/pkg/provider/litellm"
	"github.com/rhuss/consensus/pkg/provider/responses"
	"github.com/rhuss/consensus/pkg/provider/vllm"
	"github.com/rhuss/consensus/pkg/storage/memory"
	"github.com/rhuss/consensus/pkg/storage/postgres"
	"github.com/rhuss/consensus/pkg/transport"
)

// newAdapter creates the backend adapter of one configured provider.
func newAdapter(p config.ProviderConfig) (provider.Provider, error) {
	switch p.Type {
	case "", config.ProviderVLLM:
		return vllm.New(vllm.Config{
			BaseURL:    p.BaseURL,
			APIKey:     p.APIKey,
			Timeout:    p.Timeout,
			GuidedJSON: p.JSONMode,
		})
	case config.ProviderLiteLLM:
		return litellm.New(litellm.Config{
			BaseURL:      p.BaseURL,
			APIKey:       p.APIKey,
			Timeout:      p.Timeout,
			JSONMode:     p.JSONMode,
			ModelMapping: p.ModelMapping,
		})
	case config.ProviderResponses:
		return responses.New(responses.Config{
			BaseURL:  p.BaseURL,
			APIKey:   p.APIKey,
			Timeout:  p.Timeout,
			JSONMode: p.JSONMode,
		})
	default:
		return nil, fmt.Errorf("unknown provider type %q", p.Type)
	}
}

// buildRegistry creates the provider registry. Every adapter is rate
// limited when configured and instrumented.
func buildRegistry(cfg *config.Config) (*provider.Registry, error) {
	reg := provider.NewRegistry()
	for _, p := range cfg.Providers {
		adapter, err := newAdapter(p)
		if err != nil {
			reg.Close()
			return nil, fmt.Errorf("provider %q: %w", p.Key, err)
		}
		wrapped := provider.Instrument(p.Key, provider.WithRateLimit(adapter, p.RequestsPerSecond, p.Burst))
		if err := reg.Register(p.Registration(), wrapped); err != nil {
			adapter.Close()
			reg.Close()
			return nil, err
		}
		slog.Info("provider registered", "key", p.Key, "type", providerType(p), "model", p.Model)
	}
	return reg, nil
}

func providerType(p config.ProviderConfig) string {
	if p.Type == "" {
		return config.ProviderVLLM
	}
	return p.Type
}

// buildDispatcher loads the agent definitions and builds one pipeline per
// domain, all sharing the configured stage ensembles.
func buildDispatcher(cfg *config.Config, reg *provider.Registry) (*engine.Dispatcher, error) {
	agents, err := template.LoadDir(cfg.Agents.Dir)
	if err != nil {
		return nil, err
	}
	domains := agents.Domains()
	if len(domains) == 0 {
		return nil, fmt.Errorf("no agent definitions found in %s", cfg.Agents.Dir)
	}

	pipelines := make([]*engine.Pipeline, 0, len(domains))
	for _, domain := range domains {
		agent, _ := agents.Get(domain)
		p, err := engine.New(agent, reg, engine.Config{
			Pipeline:       cfg.Pipeline.PipelineConfig,
			MaxConcurrency: cfg.Pipeline.MaxConcurrency,
			Observer:       observability.NewPipelineMetrics(domain),
		})
		if err != nil {
			return nil, fmt.Errorf("domain %q: %w", domain, err)
		}
		pipelines = append(pipelines, p)
	}
	return engine.NewDispatcher(pipelines...)
}

// buildStore creates the report store.
func buildStore(ctx context.Context, cfg *config.Config) (transport.AnalysisStore, error) {
	switch cfg.Storage.Type {
	case "postgres":
		pg := cfg.Storage.Postgres
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            pg.DSN,
			MaxConns:       pg.MaxConns,
			MigrateOnStart: pg.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		slog.Info("storage enabled", "type", "postgres")
		return store, nil
	default:
		slog.Info("storage enabled", "type", "memory", "max_size", cfg.Storage.MaxSize)
		return memory.New(cfg.Storage.MaxSize), nil
	}
}

// buildAuth creates the authentication chain and the optional rate limiter.
func buildAuth(cfg *config.Config) (*auth.AuthChain, auth.RateLimiter, error) {
	chain := &auth.AuthChain{DefaultDecision: auth.No}

	switch cfg.Auth.Type {
	case "apikey":
		entries := make([]apikey.RawKeyEntry, 0, len(cfg.Auth.APIKeys))
		for _, k := range cfg.Auth.APIKeys {
			id := auth.Identity{
				Subject:     k.Subject,
				ServiceTier: k.ServiceTier,
				Scopes:      k.Scopes,
			}
			if k.TenantID != "" {
				id.Metadata = map[string]string{auth.TenantMetadataKey: k.TenantID}
			}
			entries = append(entries, apikey.RawKeyEntry{Key: k.Key, Identity: id})
		}
		chain.Authenticators = []auth.Authenticator{apikey.New(entries)}
	case "jwt":
		j := cfg.Auth.JWT
		a, err := jwt.New(jwt.Config{
			Issuer:      j.Issuer,
			Audience:    j.Audience,
			JWKSURL:     j.JWKSURL,
			UserClaim:   j.UserClaim,
			TenantClaim: j.TenantClaim,
			TierClaim:   j.TierClaim,
			ScopesClaim: j.ScopesClaim,
			CacheTTL:    j.CacheTTL,
		})
		if err != nil {
			return nil, nil, err
		}
		chain.Authenticators = []auth.Authenticator{a}
	default:
		chain.Authenticators = []auth.Authenticator{&noop.Authenticator{}}
		chain.DefaultDecision = auth.Yes
	}

	rl := cfg.Auth.RateLimit
	if rl.RequestsPerMinute <= 0 && len(rl.Tiers) == 0 {
		return chain, nil, nil
	}
	tiers := make(map[string]auth.TierConfig, len(rl.Tiers))
	for name, t := range rl.Tiers {
		tiers[name] = auth.TierConfig{RequestsPerMinute: t.RequestsPerMinute, Burst: t.Burst}
	}
	return chain, auth.NewTokenBucketLimiter(tiers, rl.RequestsPerMinute), nil
}
