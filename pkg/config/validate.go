package config

import (
	"errors"
	"fmt"

	"github.com/rhuss/consensus/pkg/api"
)

// Validate checks the configuration for required fields and valid values.
// Every problem is reported with its field path.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be > 0, got %d", c.Server.MaxBodySize))
	}

	errs = append(errs, c.validateProviders()...)
	errs = append(errs, c.validatePipeline()...)

	if c.Agents.Dir == "" {
		errs = append(errs, errors.New("agents.dir is required"))
	}

	switch c.Storage.Type {
	case "memory":
		if c.Storage.MaxSize < 0 {
			errs = append(errs, fmt.Errorf("storage.max_size must not be negative, got %d", c.Storage.MaxSize))
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, errors.New("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}

	switch c.Auth.Type {
	case "none":
	case "apikey":
		if len(c.Auth.APIKeys) == 0 {
			errs = append(errs, errors.New("auth.api_keys must not be empty when auth.type is \"apikey\""))
		}
		for i, k := range c.Auth.APIKeys {
			if k.Key == "" && k.KeyFile == "" {
				errs = append(errs, fmt.Errorf("auth.api_keys[%d]: key or key_file is required", i))
			}
			if k.Subject == "" {
				errs = append(errs, fmt.Errorf("auth.api_keys[%d].subject is required", i))
			}
		}
	case "jwt":
		if c.Auth.JWT.JWKSURL == "" {
			errs = append(errs, errors.New("auth.jwt.jwks_url is required when auth.type is \"jwt\""))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}
	if c.Auth.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("auth.rate_limit.requests_per_minute must not be negative"))
	}

	if c.MCP.Enabled && c.MCP.Path == "" {
		errs = append(errs, errors.New("mcp.path is required when mcp.enabled is true"))
	}
	if c.Observability.Metrics.Enabled && c.Observability.Metrics.Path == "" {
		errs = append(errs, errors.New("observability.metrics.path is required when metrics are enabled"))
	}

	return errors.Join(errs...)
}

func (c *Config) validateProviders() []error {
	var errs []error
	if len(c.Providers) == 0 {
		errs = append(errs, errors.New("providers must list at least one provider"))
	}
	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		field := fmt.Sprintf("providers[%d]", i)
		if p.Key == "" {
			errs = append(errs, fmt.Errorf("%s.key is required", field))
		} else if seen[p.Key] {
			errs = append(errs, fmt.Errorf("%s.key: duplicate provider %q", field, p.Key))
		}
		seen[p.Key] = true

		switch p.Type {
		case "", ProviderVLLM, ProviderLiteLLM, ProviderResponses:
		default:
			errs = append(errs, fmt.Errorf("%s.type must be \"vllm\", \"litellm\" or \"responses\", got %q", field, p.Type))
		}
		if p.BaseURL == "" {
			errs = append(errs, fmt.Errorf("%s.base_url is required", field))
		}
		if p.Model == "" {
			errs = append(errs, fmt.Errorf("%s.model is required", field))
		}
		if p.RequestsPerSecond < 0 || p.Burst < 0 {
			errs = append(errs, fmt.Errorf("%s: requests_per_second and burst must not be negative", field))
		}
		if len(p.ModelMapping) > 0 && p.Type != ProviderLiteLLM {
			errs = append(errs, fmt.Errorf("%s.model_mapping is only supported for type \"litellm\"", field))
		}
	}
	return errs
}

func (c *Config) validatePipeline() []error {
	var errs []error
	if err := c.Pipeline.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("pipeline: %w", err))
	}

	// Unknown keys are rejected here rather than at the first analysis.
	for _, s := range api.Stages {
		for i, key := range c.Pipeline.Stage(s).Providers {
			if key == "" {
				continue
			}
			if _, ok := c.Provider(key); !ok {
				errs = append(errs, fmt.Errorf("pipeline.%s.providers[%d]: unknown provider %q", s, i, key))
			}
		}
	}

	w := c.Pipeline.Weights
	if w.Knowledge+w.Data+w.Reasoning <= 0 {
		errs = append(errs, errors.New("pipeline.weights must have a positive sum"))
	}
	if c.Pipeline.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_concurrency must not be negative, got %d", c.Pipeline.MaxConcurrency))
	}
	return errs
}
