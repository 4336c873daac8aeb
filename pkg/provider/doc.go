// Package provider defines the protocol-agnostic interface for model
// backends that complete a prompt. Each adapter (vllm, litellm,
// responses) handles its own wire protocol internally and reports
// failures only as *api.ProviderError values, so the ensemble can
// exclude a failed backend without knowing how it talks to the network.
//
// Adapters are registered under configuration keys in a Registry. The
// Registry is built once at startup and injected into pipelines; there
// is no package-level provider state.
package provider
