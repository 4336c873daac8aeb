package api

import (
	"errors"
	"fmt"
)

// Validate checks an EngineConfig. The field prefix is used in messages.
func (c EngineConfig) Validate(field string) error {
	var errs []error
	if len(c.Providers) == 0 {
		errs = append(errs, fmt.Errorf("%s.providers must list at least one provider", field))
	}
	seen := make(map[string]bool, len(c.Providers))
	for i, key := range c.Providers {
		if key == "" {
			errs = append(errs, fmt.Errorf("%s.providers[%d] is empty", field, i))
			continue
		}
		if seen[key] {
			errs = append(errs, fmt.Errorf("%s.providers[%d]: duplicate provider %q", field, i, key))
		}
		seen[key] = true
	}
	if t := c.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("%s.temperature must be between 0.0 and 2.0, got %g", field, *t))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("%s.max_tokens must not be negative, got %d", field, c.MaxTokens))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%s.timeout must not be negative, got %s", field, c.Timeout))
	}
	return errors.Join(errs...)
}

// Validate checks the whole pipeline configuration.
func (c PipelineConfig) Validate() error {
	var errs []error
	for _, s := range Stages {
		if err := c.Stage(s).Validate(string(s)); err != nil {
			errs = append(errs, err)
		}
	}
	if c.ConsensusThreshold < 0 || c.ConsensusThreshold > 1 {
		errs = append(errs, fmt.Errorf("consensus_threshold must be between 0.0 and 1.0, got %g", c.ConsensusThreshold))
	}
	w := c.Weights
	if w.Knowledge < 0 || w.Data < 0 || w.Reasoning < 0 {
		errs = append(errs, fmt.Errorf("weights must not be negative"))
	}
	return errors.Join(errs...)
}
