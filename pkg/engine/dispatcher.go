package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/rhuss/consensus/pkg/api"
	"github.com/rhuss/consensus/pkg/transport"
)

// Describer is implemented by agents that carry a human-readable description.
type Describer interface {
	Description() string
}

// Dispatcher routes analyses to the Pipeline of the requested domain.
// It is read-only after construction.
type Dispatcher struct {
	pipelines map[string]*Pipeline
}

var (
	_ transport.Analyzer     = (*Dispatcher)(nil)
	_ transport.DomainLister = (*Dispatcher)(nil)
)

// NewDispatcher creates a dispatcher. Domains must be unique.
func NewDispatcher(pipelines ...*Pipeline) (*Dispatcher, error) {
	d := &Dispatcher{pipelines: make(map[string]*Pipeline, len(pipelines))}
	for _, p := range pipelines {
		if _, exists := d.pipelines[p.Domain()]; exists {
			return nil, fmt.Errorf("engine: duplicate domain %q", p.Domain())
		}
		d.pipelines[p.Domain()] = p
	}
	return d, nil
}

// Pipeline returns the pipeline for domain.
func (d *Dispatcher) Pipeline(domain string) (*Pipeline, bool) {
	p, ok := d.pipelines[domain]
	return p, ok
}

// Analyze implements transport.Analyzer.
func (d *Dispatcher) Analyze(ctx context.Context, req *transport.AnalyzeRequest) (*api.AnalysisResult, error) {
	if req.Domain == "" {
		return nil, api.NewInvalidRequestError("domain", "domain is required")
	}
	p, ok := d.pipelines[req.Domain]
	if !ok {
		return nil, api.NewNotFoundError(fmt.Sprintf("domain %q not found", req.Domain))
	}
	var opts []AnalyzeOption
	if req.ID != "" {
		opts = append(opts, WithAnalysisID(req.ID))
	}
	return p.Analyze(ctx, req.Input, opts...)
}

// Domains implements transport.DomainLister.
func (d *Dispatcher) Domains() []api.DomainInfo {
	out := make([]api.DomainInfo, 0, len(d.pipelines))
	for name, p := range d.pipelines {
		info := api.DomainInfo{Domain: name}
		if desc, ok := p.agent.(Describer); ok {
			info.Description = desc.Description()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out
}
