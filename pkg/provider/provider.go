package provider

import (
	"context"
)

// Provider abstracts a model inference backend. The interface is
// protocol-agnostic: each adapter handles its own backend protocol
// (Chat Completions, Responses API, etc.) internally.
//
// Implementations must be safe for concurrent use by multiple goroutines.
// Complete must return an *api.ProviderError (possibly wrapped) on failure.
type Provider interface {
	// Name returns the adapter identifier (e.g., "vllm", "litellm").
	Name() string

	// Complete sends a system and user prompt and returns the completion text.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Close releases provider resources (HTTP clients, connections).
	Close() error
}

// ModelLister is implemented by adapters that can enumerate the models a
// backend serves.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}
