package vllm

import (
	"context"
	"fmt"

	"github.com/rhuss/consensus/pkg/provider"
	"github.com/rhuss/consensus/pkg/provider/openaicompat"
)

// VLLMProvider implements provider.Provider for vLLM and OpenAI-compatible
// Chat Completions backends.
type VLLMProvider struct {
	cfg    Config
	client *openaicompat.Client
}

// Ensure VLLMProvider implements provider.Provider at compile time.
var (
	_ provider.Provider    = (*VLLMProvider)(nil)
	_ provider.ModelLister = (*VLLMProvider)(nil)
)

// New creates a new VLLMProvider with the given configuration.
// Returns an error if the configuration is invalid.
func New(cfg Config) (*VLLMProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("vllm: BaseURL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	client := openaicompat.NewClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout)
	client.JSONMode = cfg.GuidedJSON

	return &VLLMProvider{cfg: cfg, client: client}, nil
}

// Name returns the provider identifier.
func (p *VLLMProvider) Name() string {
	return "vllm"
}

// Complete performs non-streaming inference against the Chat Completions endpoint.
func (p *VLLMProvider) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	return p.client.Complete(ctx, req)
}

// ListModels returns the models served by the vLLM instance.
func (p *VLLMProvider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	return p.client.ListModels(ctx)
}

// Close releases provider resources.
func (p *VLLMProvider) Close() error {
	return p.client.Close()
}
