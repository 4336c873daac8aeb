package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/consensus/pkg/debug"
)

// EnvConfig names the config file when no explicit path is given.
const EnvConfig = "CONSENSUS_CONFIG"

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, CONSENSUS_CONFIG env, ./config.yaml, /etc/consensus/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		debug.Log("config", "loaded config file", "path", filePath)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. CONSENSUS_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/consensus/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv(EnvConfig); envPath != "" {
		return envPath
	}
	for _, path := range []string{"config.yaml", "/etc/consensus/config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values;
// unknown fields are rejected.
func loadYAMLFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnvOverrides maps CONSENSUS_* environment variables onto config
// fields. Malformed numbers are reported rather than ignored.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("CONSENSUS_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CONSENSUS_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("CONSENSUS_AGENTS_DIR"); v != "" {
		cfg.Agents.Dir = v
	}
	if v := os.Getenv("CONSENSUS_STORAGE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("CONSENSUS_STORAGE_SIZE"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CONSENSUS_STORAGE_SIZE: %w", err)
		}
		cfg.Storage.MaxSize = size
	}
	if v := os.Getenv("CONSENSUS_POSTGRES_DSN"); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("CONSENSUS_AUTH_TYPE"); v != "" {
		cfg.Auth.Type = v
	}
	if v := os.Getenv("CONSENSUS_CONSENSUS_THRESHOLD"); v != "" {
		th, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("CONSENSUS_CONSENSUS_THRESHOLD: %w", err)
		}
		cfg.Pipeline.ConsensusThreshold = th
	}
	if v := os.Getenv("CONSENSUS_MCP_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CONSENSUS_MCP_ENABLED: %w", err)
		}
		cfg.MCP.Enabled = enabled
	}

	// CONSENSUS_API_KEYS: JSON array of API key configs.
	if v := os.Getenv("CONSENSUS_API_KEYS"); v != "" {
		var keys []APIKeyConfig
		if err := json.Unmarshal([]byte(v), &keys); err != nil {
			return fmt.Errorf("CONSENSUS_API_KEYS: %w", err)
		}
		cfg.Auth.APIKeys = keys
	}

	// CONSENSUS_PROVIDERS: JSON array of provider configs, replacing the file's list.
	if v := os.Getenv("CONSENSUS_PROVIDERS"); v != "" {
		var providers []ProviderConfig
		if err := json.Unmarshal([]byte(v), &providers); err != nil {
			return fmt.Errorf("CONSENSUS_PROVIDERS: %w", err)
		}
		cfg.Providers = providers
	}

	// CONSENSUS_PROVIDER_<KEY>_API_KEY sets the key of a single provider.
	for i := range cfg.Providers {
		if v := os.Getenv(providerEnvPrefix(cfg.Providers[i].Key) + "_API_KEY"); v != "" {
			cfg.Providers[i].APIKey = v
		}
	}

	return nil
}

// providerEnvPrefix maps provider key "gpt-4o.mini" to CONSENSUS_PROVIDER_GPT_4O_MINI.
func providerEnvPrefix(key string) string {
	upper := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, key)
	return "CONSENSUS_PROVIDER_" + upper
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		if p.APIKeyFile != "" && p.APIKey == "" {
			val, err := readSecretFile(p.APIKeyFile)
			if err != nil {
				return fmt.Errorf("providers[%d].api_key_file: %w", i, err)
			}
			p.APIKey = val
		}
	}

	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	for i := range cfg.Auth.APIKeys {
		k := &cfg.Auth.APIKeys[i]
		if k.KeyFile != "" && k.Key == "" {
			val, err := readSecretFile(k.KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			k.Key = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
