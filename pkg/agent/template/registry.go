package template

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rhuss/consensus/pkg/debug"
)

// Registry holds template agents keyed by domain.
type Registry struct {
	agents map[string]*Agent
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]*Agent)}
}

// LoadDir loads every definition file directly inside dir. Two files
// declaring the same domain are an error.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading agents directory: %w", err)
	}

	r := NewRegistry()
	for _, e := range entries {
		if e.IsDir() || !IsDefinitionFile(e.Name()) {
			continue
		}
		def, err := LoadDefinition(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		a, err := New(def)
		if err != nil {
			return nil, err
		}
		if err := r.Add(a); err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		debug.Log("agents", "agent definition loaded", "domain", def.Domain, "file", e.Name())
	}
	return r, nil
}

// Add registers an agent. The domain must be unique.
func (r *Registry) Add(a *Agent) error {
	if _, exists := r.agents[a.Domain()]; exists {
		return fmt.Errorf("duplicate domain %q", a.Domain())
	}
	r.agents[a.Domain()] = a
	return nil
}

// Get returns the agent for domain.
func (r *Registry) Get(domain string) (*Agent, bool) {
	a, ok := r.agents[domain]
	return a, ok
}

// Domains returns the registered domains, sorted.
func (r *Registry) Domains() []string {
	out := make([]string, 0, len(r.agents))
	for d := range r.agents {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
