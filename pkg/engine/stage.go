package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rhuss/consensus/pkg/api"
	"github.com/rhuss/consensus/pkg/debug"
	"github.com/rhuss/consensus/pkg/ensemble"
	"github.com/rhuss/consensus/pkg/provider"
)

// StageRunner executes one pipeline stage: prompt building, ensemble
// call and parsing. It is immutable after construction.
type StageRunner struct {
	stage   api.Stage
	hooks   StageHooks
	members []provider.Member
	cfg     api.EngineConfig
	orch    *ensemble.Orchestrator
}

// NewStageRunner creates a StageRunner for stage.
func NewStageRunner(stage api.Stage, hooks StageHooks, members []provider.Member, cfg api.EngineConfig, orch *ensemble.Orchestrator) *StageRunner {
	return &StageRunner{stage: stage, hooks: hooks, members: members, cfg: cfg, orch: orch}
}

// Stage returns the stage this runner executes.
func (r *StageRunner) Stage() api.Stage { return r.stage }

// Run executes the stage. prior must hold the earlier stages' outputs.
// It fails with an *api.EngineFailure (Stage set) when no provider
// answered, or with the context error when ctx ends. Parse problems are
// never errors; they surface as a Fallback output.
func (r *StageRunner) Run(ctx context.Context, input map[string]any, prior PriorContext) (*api.EngineResult, error) {
	start := time.Now()

	prompt := ensemble.Prompt{
		System: r.hooks.SystemPrompt(),
		User:   r.hooks.BuildPrompt(input, prior),
	}
	debug.Log("engine", "stage started", "stage", r.stage, "providers", len(r.members),
		"user_prompt_len", len(prompt.User))

	c, err := r.orch.Run(ctx, r.members, r.cfg, prompt)
	if err != nil {
		var failure *api.EngineFailure
		if errors.As(err, &failure) {
			failure.Stage = r.stage
		}
		return nil, err
	}

	parsed := safeParse(r.stage, r.hooks, c.Text)
	if _, ok := parsed.(Fallback); ok {
		debug.Log("engine", "stage output fell back", "stage", r.stage, "selected", c.Selected)
	}

	res := &api.EngineResult{
		Stage:          r.stage,
		Output:         parsed.Output(),
		Confidence:     c.Confidence,
		ProcessingTime: time.Since(start),
		ProvidersUsed:  c.ProvidersUsed,
		Selected:       c.Selected,
		Failures:       c.Failures,
	}
	debug.Log("engine", "stage completed", "stage", r.stage, "confidence", res.Confidence,
		"providers_used", res.ProvidersUsed, "duration_ms", res.ProcessingTime.Milliseconds())
	return res, nil
}
