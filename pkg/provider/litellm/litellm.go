package litellm

import (
	"context"
	"fmt"

	"github.com/rhuss/consensus/pkg/provider"
	"github.com/rhuss/consensus/pkg/provider/openaicompat"
)

// LiteLLMProvider is a provider backed by a LiteLLM proxy.
type LiteLLMProvider struct {
	cfg    Config
	client *openaicompat.Client
}

var (
	_ provider.Provider    = (*LiteLLMProvider)(nil)
	_ provider.ModelLister = (*LiteLLMProvider)(nil)
)

// New creates a LiteLLM provider. BaseURL is required.
func New(cfg Config) (*LiteLLMProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("litellm: BaseURL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	client := openaicompat.NewClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout)
	client.JSONMode = cfg.JSONMode
	client.ModelMapper = cfg.mapper()

	return &LiteLLMProvider{cfg: cfg, client: client}, nil
}

// Name returns the provider identifier.
func (p *LiteLLMProvider) Name() string {
	return "litellm"
}

// Complete performs non-streaming inference against the Chat Completions endpoint.
// Failures are mapped onto provider error kinds by the shared client.
func (p *LiteLLMProvider) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	return p.client.Complete(ctx, req)
}

// ListModels returns available models from the backend by querying
// the /v1/models endpoint.
func (p *LiteLLMProvider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	return p.client.ListModels(ctx)
}

// Close releases provider resources.
func (p *LiteLLMProvider) Close() error {
	return p.client.Close()
}
