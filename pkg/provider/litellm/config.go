package litellm

import "time"

// defaultTimeout is the transport ceiling used when Config.Timeout is zero.
const defaultTimeout = 120 * time.Second

// Config configures one LiteLLM-backed provider.
type Config struct {
	// BaseURL of the proxy, e.g. "http://localhost:4000".
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Timeout bounds a single HTTP exchange. Stage deadlines arrive
	// through the context and are usually shorter.
	Timeout time.Duration

	// JSONMode forwards response_format json_object to the routed model.
	JSONMode bool

	// ModelMapping rewrites requested model names, for example
	// {"claude": "anthropic/claude-3-opus"}. Unmapped names pass through.
	ModelMapping map[string]string
}

// mapper returns the model rewrite function, or nil without a mapping.
func (c Config) mapper() func(string) string {
	if len(c.ModelMapping) == 0 {
		return nil
	}
	mapping := c.ModelMapping
	return func(model string) string {
		if mapped, ok := mapping[model]; ok {
			return mapped
		}
		return model
	}
}
