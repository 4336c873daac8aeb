package ensemble

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rhuss/consensus/pkg/api"
	"github.com/rhuss/consensus/pkg/debug"
	"github.com/rhuss/consensus/pkg/provider"
)

// Options tune an Orchestrator. The zero value is usable.
type Options struct {
	// ConsensusThreshold is the success ratio below which confidence is
	// penalised further. Zero disables the penalty.
	ConsensusThreshold float64

	// MaxConcurrency caps simultaneous provider calls per round. Zero
	// dispatches to every provider at once.
	MaxConcurrency int

	// Similarity compares two answers. Nil means StructuralSimilarity.
	Similarity SimilarityFunc
}

// Prompt is the pair of prompts sent identically to every provider.
type Prompt struct {
	System string
	User   string
}

// Consensus is the reduced outcome of one round.
type Consensus struct {
	// Text is the selected answer, verbatim.
	Text string

	// Confidence is in [0, 1]; see Confidence.
	Confidence float64

	// Agreement is the mean similarity of the selected answer to the other
	// answers (1 when a single provider answered).
	Agreement float64

	// ProvidersUsed lists the providers that answered, in configuration order.
	ProvidersUsed []string

	// Selected is the provider whose answer was chosen.
	Selected string

	// Failures records why excluded providers were dropped.
	Failures []*api.ProviderError
}

// Orchestrator runs consensus rounds. It holds no per-round state and is
// safe for concurrent use.
type Orchestrator struct {
	opts Options
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	return &Orchestrator{opts: opts}
}

type outcome struct {
	text string
	err  *api.ProviderError
}

// Run dispatches prompt to every member concurrently, each call under its
// own cfg.CallTimeout(), and waits for all of them. Failed members are
// excluded. When no member answers it returns an *api.EngineFailure with
// an empty Stage; the caller knows which stage it is running. If ctx ends
// during the round, ctx.Err() is returned instead.
func (o *Orchestrator) Run(ctx context.Context, members []provider.Member, cfg api.EngineConfig, prompt Prompt) (*Consensus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, &api.EngineFailure{}
	}

	outcomes := make([]outcome, len(members))
	timeout := cfg.CallTimeout()

	var g errgroup.Group
	if o.opts.MaxConcurrency > 0 {
		g.SetLimit(o.opts.MaxConcurrency)
	}
	for i, m := range members {
		req := &provider.Request{
			SystemPrompt: prompt.System,
			UserPrompt:   prompt.User,
		}
		if cfg.Temperature != nil {
			req.Temperature = provider.Float64(*cfg.Temperature)
		}
		if cfg.MaxTokens > 0 {
			req.MaxTokens = provider.Int(cfg.MaxTokens)
		}
		g.Go(func() error {
			outcomes[i] = call(ctx, m, req, timeout)
			return nil
		})
	}
	// Calls never return errors; failures are recorded per outcome.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		texts    []string
		used     []string
		failures []*api.ProviderError
	)
	for i, out := range outcomes {
		if out.err != nil {
			debug.Log("ensemble", "provider excluded",
				"provider", members[i].Key, "kind", out.err.Kind, "error", out.err.Message)
			failures = append(failures, out.err)
			continue
		}
		texts = append(texts, out.text)
		used = append(used, members[i].Key)
	}

	if len(texts) == 0 {
		return nil, &api.EngineFailure{Failures: failures}
	}

	sel := selectConsensus(texts, o.opts.Similarity)
	c := &Consensus{
		Text:          texts[sel.index],
		Agreement:     sel.agreement,
		Confidence:    Confidence(len(texts), len(members), sel.agreement, o.opts.ConsensusThreshold),
		ProvidersUsed: used,
		Selected:      used[sel.index],
		Failures:      failures,
	}
	debug.Log("ensemble", "consensus",
		"configured", len(members), "succeeded", len(texts), "selected", c.Selected,
		"agreement", c.Agreement, "confidence", c.Confidence)
	return c, nil
}

// call performs one provider call under its own deadline and converts
// every failure, including panics, into a ProviderError.
func call(ctx context.Context, m provider.Member, req *provider.Request, timeout time.Duration) (out outcome) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			out = outcome{err: &api.ProviderError{
				Provider: m.Key,
				Kind:     api.ProviderUnavailable,
				Message:  fmt.Sprintf("provider panicked: %v", r),
			}}
		}
	}()

	resp, err := m.Provider.Complete(callCtx, req)
	if err != nil {
		pe := api.AsProviderError(m.Key, err)
		// The per-call deadline fired while the caller was still waiting:
		// whatever the adapter reported, this is a timeout.
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			pe.Kind = api.ProviderTimeout
		}
		return outcome{err: pe}
	}
	if resp == nil || resp.Text == "" {
		return outcome{err: &api.ProviderError{
			Provider: m.Key,
			Kind:     api.ProviderInvalidResponse,
			Message:  "provider returned an empty response",
		}}
	}
	return outcome{text: resp.Text}
}
