package vllm

import "time"

// defaultTimeout is the transport ceiling used when Config.Timeout is zero.
const defaultTimeout = 120 * time.Second

// Config configures one vLLM-backed provider.
type Config struct {
	// BaseURL of the vLLM server, e.g. "http://localhost:8000".
	BaseURL string

	// APIKey is sent as a bearer token when set (vllm serve --api-key).
	APIKey string

	// Timeout bounds a single HTTP exchange. Stage deadlines arrive
	// through the context and are usually shorter.
	Timeout time.Duration

	// GuidedJSON requests response_format json_object, which vLLM enforces
	// through guided decoding.
	GuidedJSON bool
}

// DefaultConfig returns a Config for baseURL with the default timeout.
func DefaultConfig(baseURL string) Config {
	return Config{BaseURL: baseURL, Timeout: defaultTimeout}
}
