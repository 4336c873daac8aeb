package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rhuss/consensus/pkg/api"
	"github.com/rhuss/consensus/pkg/ensemble"
	"github.com/rhuss/consensus/pkg/provider"
)

// Pipeline runs analyses for one domain Agent. Providers are resolved and
// frameworks loaded once, in New; Analyze shares no mutable state between
// calls and is safe for concurrent use.
type Pipeline struct {
	agent    Agent
	cfg      Config
	runners  map[api.Stage]*StageRunner
	observer Observer
}

// New builds a Pipeline. It validates cfg, resolves every stage's provider
// keys against reg (unknown keys are rejected here, not at call time), and
// calls agent.LoadFrameworks.
func New(agent Agent, reg *provider.Registry, cfg Config) (*Pipeline, error) {
	if agent == nil {
		return nil, fmt.Errorf("engine: agent must not be nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("engine: provider registry must not be nil")
	}
	if err := cfg.Pipeline.Validate(); err != nil {
		return nil, fmt.Errorf("engine: invalid pipeline config for %s: %w", agent.Domain(), err)
	}

	orch := ensemble.New(ensemble.Options{
		ConsensusThreshold: cfg.Pipeline.ConsensusThreshold,
		MaxConcurrency:     cfg.MaxConcurrency,
		Similarity:         cfg.Similarity,
	})

	runners := make(map[api.Stage]*StageRunner, len(api.Stages))
	var errs []error
	for _, stage := range api.Stages {
		stageCfg := cfg.Pipeline.Stage(stage)
		members, err := reg.Resolve(stageCfg.Providers)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s stage: %w", stage, err))
			continue
		}
		runners[stage] = NewStageRunner(stage, hooksFor(agent, stage), members, stageCfg, orch)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("engine: %s: %w", agent.Domain(), errors.Join(errs...))
	}

	if err := agent.LoadFrameworks(); err != nil {
		return nil, fmt.Errorf("engine: loading %s frameworks: %w", agent.Domain(), err)
	}

	observer := Observer(debugObserver{})
	if cfg.Observer != nil {
		observer = Observers(debugObserver{}, cfg.Observer)
	}

	return &Pipeline{agent: agent, cfg: cfg, runners: runners, observer: observer}, nil
}

// Domain returns the agent's domain.
func (p *Pipeline) Domain() string { return p.agent.Domain() }

// Config returns the pipeline configuration.
func (p *Pipeline) Config() api.PipelineConfig { return p.cfg.Pipeline }

// AnalyzeOption customizes a single Analyze call.
type AnalyzeOption func(*analyzeOptions)

type analyzeOptions struct {
	id string
}

// WithAnalysisID assigns the analysis ID instead of generating one, so a
// caller can reference the analysis before it finishes.
func WithAnalysisID(id string) AnalyzeOption {
	return func(o *analyzeOptions) { o.id = id }
}

// Analyze runs the three stages over input.
//
// It fails with an *api.AnalysisError of kind invalid_input when the agent
// rejects the input, or no_provider_succeeded when a stage had no
// answering provider. If ctx ends, the context error is returned, wrapped
// with the stage that was running.
func (p *Pipeline) Analyze(ctx context.Context, input map[string]any, opts ...AnalyzeOption) (*api.AnalysisResult, error) {
	o := analyzeOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.id == "" {
		o.id = api.NewAnalysisID()
	}

	r := &run{
		id:       o.id,
		observer: p.observer,
		result: &api.AnalysisResult{
			ID:        o.id,
			Domain:    p.agent.Domain(),
			State:     api.StateIdle,
			CreatedAt: time.Now().Unix(),
		},
	}

	res, err := p.execute(ctx, r, input)
	p.observer.AnalysisFinished(o.id, err)
	return res, err
}

func (p *Pipeline) execute(ctx context.Context, r *run, input map[string]any) (*api.AnalysisResult, error) {
	processed, err := p.agent.ProcessData(input)
	if err != nil {
		r.fail()
		return nil, api.InvalidInput(err)
	}

	var prior PriorContext
	for _, stage := range api.Stages {
		if err := r.transition(api.RunningState(stage)); err != nil {
			return nil, err
		}

		res, err := p.runners[stage].Run(ctx, processed, prior)
		if err != nil {
			r.fail()
			var failure *api.EngineFailure
			if errors.As(err, &failure) {
				return nil, api.NoProviderSucceeded(failure)
			}
			return nil, fmt.Errorf("%s stage: %w", stage, err)
		}

		*r.result.StageResult(stage) = *res
		p.observer.StageCompleted(r.id, res)

		switch stage {
		case api.StageKnowledge:
			prior.Knowledge = res.Output
		case api.StageData:
			prior.Data = res.Output
		}
	}

	if err := r.transition(api.StateCompleted); err != nil {
		return nil, err
	}

	out := r.result
	out.FinalOutput = out.Reasoning.Output
	out.OverallConfidence = aggregateConfidence(p.cfg.weights(), out)
	out.TotalProcessingTime = out.Knowledge.ProcessingTime + out.Data.ProcessingTime + out.Reasoning.ProcessingTime
	return out, nil
}

// aggregateConfidence is the weighted mean of the stage confidences.
func aggregateConfidence(w api.Weights, r *api.AnalysisResult) float64 {
	c := w.Knowledge*r.Knowledge.Confidence + w.Data*r.Data.Confidence + w.Reasoning*r.Reasoning.Confidence
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}

// run tracks the state machine of one Analyze call.
type run struct {
	id       string
	observer Observer
	result   *api.AnalysisResult
}

func (r *run) transition(to api.PipelineState) error {
	from := r.result.State
	if err := api.ValidatePipelineTransition(from, to); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	r.result.State = to
	r.observer.StateChanged(r.id, from, to)
	return nil
}

func (r *run) fail() {
	// Every non-terminal state may fail.
	_ = r.transition(api.StateFailed)
}
