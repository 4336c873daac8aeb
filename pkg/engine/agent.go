package engine

import "github.com/rhuss/consensus/pkg/api"

// PriorContext carries the outputs of earlier stages into a prompt
// builder. The maps are the exact values the earlier parsers returned.
// Knowledge is nil for the knowledge stage; Data is nil until the
// reasoning stage.
type PriorContext struct {
	Knowledge api.Output
	Data      api.Output
}

// StageHooks are the domain-supplied functions for one stage.
type StageHooks interface {
	// SystemPrompt returns the stage's system prompt.
	SystemPrompt() string

	// BuildPrompt renders the user prompt from the processed input and
	// the outputs of earlier stages.
	BuildPrompt(input map[string]any, prior PriorContext) string

	// ParseOutput converts the consensus text into structured output. It
	// must not fail: unusable text is reported as a Fallback. A panic is
	// recovered by the pipeline into a Fallback as well.
	ParseOutput(text string) ParseResult
}

// Agent is a domain analyzer plugged into the pipeline.
type Agent interface {
	// Domain names the analyzer (e.g. "culture", "skills").
	Domain() string

	// LoadFrameworks loads local domain knowledge. It is called once when
	// a pipeline is built and must not need the network.
	LoadFrameworks() error

	// ProcessData validates and normalizes the raw input. An error
	// rejects the analysis as invalid input before any provider is called.
	ProcessData(input map[string]any) (map[string]any, error)

	Knowledge() StageHooks
	Data() StageHooks
	Reasoning() StageHooks
}

// HookFuncs adapts plain functions to StageHooks. Nil functions fall back
// to an empty system prompt, an empty user prompt and a parser that
// accepts any JSON object.
type HookFuncs struct {
	System func() string
	Build  func(input map[string]any, prior PriorContext) string
	Parse  func(text string) ParseResult
}

// SystemPrompt implements StageHooks.
func (h HookFuncs) SystemPrompt() string {
	if h.System == nil {
		return ""
	}
	return h.System()
}

// BuildPrompt implements StageHooks.
func (h HookFuncs) BuildPrompt(input map[string]any, prior PriorContext) string {
	if h.Build == nil {
		return ""
	}
	return h.Build(input, prior)
}

// ParseOutput implements StageHooks.
func (h HookFuncs) ParseOutput(text string) ParseResult {
	if h.Parse == nil {
		return ParseJSON(text)
	}
	return h.Parse(text)
}

func hooksFor(a Agent, stage api.Stage) StageHooks {
	switch stage {
	case api.StageKnowledge:
		return a.Knowledge()
	case api.StageData:
		return a.Data()
	default:
		return a.Reasoning()
	}
}
