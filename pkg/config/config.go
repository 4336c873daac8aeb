// Package config provides unified configuration for the consensus server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (CONSENSUS_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"strconv"
	"time"

	"github.com/rhuss/consensus/pkg/api"
)

// Config holds all configuration for the consensus server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Providers     []ProviderConfig    `yaml:"providers"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Agents        AgentsConfig        `yaml:"agents"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
	MCP           MCPConfig           `yaml:"mcp"`
	Debug         DebugConfig         `yaml:"debug"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 5m
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 10 MiB
}

// Provider types.
const (
	ProviderVLLM      = "vllm"
	ProviderLiteLLM   = "litellm"
	ProviderResponses = "responses"
)

// ProviderConfig describes one backend a stage can fan out to.
type ProviderConfig struct {
	Key        string `yaml:"key" json:"key"`   // referenced by pipeline stages
	Type       string `yaml:"type" json:"type"` // vllm, litellm or responses; default: vllm
	BaseURL    string `yaml:"base_url" json:"base_url"`
	APIKey     string `yaml:"api_key" json:"api_key"`
	APIKeyFile string `yaml:"api_key_file" json:"api_key_file"` // _file variant for api_key
	Model      string `yaml:"model" json:"model"`

	Temperature float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`

	// Timeout is the HTTP transport ceiling. Per-call deadlines come from
	// the stage timeout.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// RequestsPerSecond enables a client-side token bucket (0 = off).
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`

	// JSONMode asks the backend for a JSON object response.
	JSONMode bool `yaml:"json_mode" json:"json_mode"`

	// ModelMapping rewrites model names (litellm only).
	ModelMapping map[string]string `yaml:"model_mapping" json:"model_mapping"`
}

// Registration returns the registry settings of the provider.
func (p ProviderConfig) Registration() api.ProviderConfig {
	return api.ProviderConfig{
		Key:         p.Key,
		Model:       p.Model,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	}
}

// PipelineConfig holds the per-stage ensembles shared by every domain.
type PipelineConfig struct {
	api.PipelineConfig `yaml:",inline"`

	// MaxConcurrency bounds provider calls per stage (0 = unlimited).
	MaxConcurrency int `yaml:"max_concurrency"`
}

// AgentsConfig locates the template agent definitions.
type AgentsConfig struct {
	Dir string `yaml:"dir"` // default: "agents"
}

// StorageConfig holds report storage settings.
type StorageConfig struct {
	Type     string         `yaml:"type"`     // "memory" or "postgres", default: "memory"
	MaxSize  int            `yaml:"max_size"` // for memory store, default: 10000
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type      string          `yaml:"type"`     // "none", "apikey" or "jwt", default: "none"
	APIKeys   []APIKeyConfig  `yaml:"api_keys"` // for type=apikey
	JWT       JWTConfig       `yaml:"jwt"`      // for type=jwt
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string   `yaml:"key" json:"key"`
	KeyFile     string   `yaml:"key_file" json:"key_file"` // _file variant for key
	Subject     string   `yaml:"subject" json:"subject"`
	TenantID    string   `yaml:"tenant_id" json:"tenant_id"`
	ServiceTier string   `yaml:"service_tier" json:"service_tier"`
	Scopes      []string `yaml:"scopes" json:"scopes"`
}

// JWTConfig configures bearer token validation against a JWKS endpoint.
type JWTConfig struct {
	Issuer      string        `yaml:"issuer"`
	Audience    string        `yaml:"audience"`
	JWKSURL     string        `yaml:"jwks_url"`
	UserClaim   string        `yaml:"user_claim"`
	TenantClaim string        `yaml:"tenant_claim"`
	TierClaim   string        `yaml:"tier_claim"`
	ScopesClaim string        `yaml:"scopes_claim"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

// RateLimitConfig limits requests per authenticated subject.
type RateLimitConfig struct {
	RequestsPerMinute int                   `yaml:"requests_per_minute"` // 0 = unlimited
	Tiers             map[string]TierConfig `yaml:"tiers"`
}

// TierConfig overrides the rate for one service tier.
type TierConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// MCPConfig exposes the analysis pipeline as an MCP server.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"` // default: false
	Path    string `yaml:"path"`    // default: "/mcp"
}

// DebugConfig holds debug logging settings. CONSENSUS_DEBUG and
// CONSENSUS_LOG_LEVEL take precedence.
type DebugConfig struct {
	Categories string `yaml:"categories"` // comma-separated, e.g. "ensemble,providers"
	Level      string `yaml:"level"`      // TRACE, DEBUG, INFO, WARN or ERROR
	Format     string `yaml:"format"`     // "text" or "json"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
			MaxBodySize:     10 << 20,
		},
		Pipeline: PipelineConfig{
			PipelineConfig: api.PipelineConfig{
				Knowledge:          api.EngineConfig{Timeout: api.DefaultProviderTimeout},
				Data:               api.EngineConfig{Timeout: api.DefaultProviderTimeout},
				Reasoning:          api.EngineConfig{Timeout: api.DefaultProviderTimeout},
				ConsensusThreshold: 0.6,
				Weights:            api.DefaultWeights(),
			},
		},
		Agents: AgentsConfig{
			Dir: "agents",
		},
		Storage: StorageConfig{
			Type:    "memory",
			MaxSize: 10000,
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Auth: AuthConfig{
			Type: "none",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		MCP: MCPConfig{
			Path: "/mcp",
		},
	}
}

// Provider returns the provider configured under key.
func (c *Config) Provider(key string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Key == key {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// Addr returns the listen address derived from server.port.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}
