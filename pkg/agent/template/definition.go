package template

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/rhuss/consensus/pkg/api"
)

// Definition is the on-disk description of a template agent.
type Definition struct {
	Domain         string   `yaml:"domain" toml:"domain"`
	Description    string   `yaml:"description" toml:"description"`
	Frameworks     []string `yaml:"frameworks" toml:"frameworks"`
	RequiredFields []string `yaml:"required_fields" toml:"required_fields"`
	Stages         Stages   `yaml:"stages" toml:"stages"`

	// dir resolves relative framework paths.
	dir string
}

// Stages holds the prompt templates of the three stages.
type Stages struct {
	Knowledge StageDefinition `yaml:"knowledge" toml:"knowledge"`
	Data      StageDefinition `yaml:"data" toml:"data"`
	Reasoning StageDefinition `yaml:"reasoning" toml:"reasoning"`
}

// StageDefinition holds the prompts of one stage.
type StageDefinition struct {
	System string `yaml:"system" toml:"system"`
	User   string `yaml:"user" toml:"user"`

	// Expect lists top-level keys the parsed output must contain. Output
	// missing any of them is reported as a fallback.
	Expect []string `yaml:"expect" toml:"expect"`
}

func (s Stages) get(stage api.Stage) StageDefinition {
	switch stage {
	case api.StageKnowledge:
		return s.Knowledge
	case api.StageData:
		return s.Data
	default:
		return s.Reasoning
	}
}

// IsDefinitionFile reports whether path has a supported extension.
func IsDefinitionFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".toml":
		return true
	}
	return false
}

// LoadDefinition reads and validates a definition file. The format is
// chosen by the file extension; unknown keys are rejected.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading agent definition: %w", err)
	}

	var def Definition
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("parsing agent definition %s: %w", path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), &def)
		if err != nil {
			return nil, fmt.Errorf("parsing agent definition %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("parsing agent definition %s: unknown key %q", path, undecoded[0].String())
		}
	default:
		return nil, fmt.Errorf("agent definition %s: unsupported extension %q", path, filepath.Ext(path))
	}

	def.dir = filepath.Dir(path)
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("agent definition %s: %w", path, err)
	}
	return &def, nil
}

// Validate checks required fields.
func (d *Definition) Validate() error {
	var errs []error
	if strings.TrimSpace(d.Domain) == "" {
		errs = append(errs, errors.New("domain is required"))
	}
	for _, s := range api.Stages {
		if strings.TrimSpace(d.Stages.get(s).User) == "" {
			errs = append(errs, fmt.Errorf("stages.%s.user is required", s))
		}
	}
	for i, f := range d.RequiredFields {
		if strings.TrimSpace(f) == "" {
			errs = append(errs, fmt.Errorf("required_fields[%d] is empty", i))
		}
	}
	return errors.Join(errs...)
}

// frameworkPath resolves a framework entry relative to the definition file.
func (d *Definition) frameworkPath(p string) string {
	if filepath.IsAbs(p) || d.dir == "" {
		return p
	}
	return filepath.Join(d.dir, p)
}
