package api

import "time"

// Stage identifies one pass of the three-stage pipeline.
type Stage string

const (
	StageKnowledge Stage = "knowledge"
	StageData      Stage = "data"
	StageReasoning Stage = "reasoning"
)

// Stages lists the pipeline stages in execution order.
var Stages = []Stage{StageKnowledge, StageData, StageReasoning}

// Output is the structured map a stage parser produces. Parsers that cannot
// make sense of the model text still return an Output, tagged with an
// "error" field (see ErrorField).
type Output map[string]any

// ErrorField is the key a fallback Output carries when parsing failed.
const ErrorField = "error"

// HasError reports whether the output is a parse fallback.
func (o Output) HasError() bool {
	if o == nil {
		return false
	}
	_, ok := o[ErrorField]
	return ok
}

// ProviderConfig describes one callable backend option.
type ProviderConfig struct {
	Key         string  `json:"key" yaml:"key"`
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
}

// EngineConfig is the ensemble configuration for one stage. It is treated
// as immutable once a pipeline has been constructed from it.
type EngineConfig struct {
	// Providers is the ordered list of provider keys. Order breaks ties
	// during consensus selection.
	Providers []string `json:"providers" yaml:"providers"`

	// Temperature is passed to every provider call of the stage. Nil leaves
	// it to the provider's registered temperature, then to the backend.
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature"`

	// MaxTokens bounds the output size of every provider call (0 = provider default).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// Timeout bounds each individual provider call. Zero means DefaultProviderTimeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultProviderTimeout applies when an EngineConfig leaves Timeout unset.
const DefaultProviderTimeout = 60 * time.Second

// CallTimeout returns the effective per-call timeout.
func (c EngineConfig) CallTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultProviderTimeout
	}
	return c.Timeout
}

// Weights are the stage weights used to aggregate the overall confidence.
type Weights struct {
	Knowledge float64 `json:"knowledge" yaml:"knowledge"`
	Data      float64 `json:"data" yaml:"data"`
	Reasoning float64 `json:"reasoning" yaml:"reasoning"`
}

// DefaultWeights favours the reasoning stage, which shapes the actionable output.
func DefaultWeights() Weights {
	return Weights{Knowledge: 0.2, Data: 0.3, Reasoning: 0.5}
}

// Normalized scales the weights so they sum to 1. Zero weights fall back
// to DefaultWeights.
func (w Weights) Normalized() Weights {
	sum := w.Knowledge + w.Data + w.Reasoning
	if sum <= 0 {
		return DefaultWeights()
	}
	return Weights{
		Knowledge: w.Knowledge / sum,
		Data:      w.Data / sum,
		Reasoning: w.Reasoning / sum,
	}
}

// PipelineConfig holds the per-stage ensembles of one agent instance.
type PipelineConfig struct {
	Knowledge EngineConfig `json:"knowledge" yaml:"knowledge"`
	Data      EngineConfig `json:"data" yaml:"data"`
	Reasoning EngineConfig `json:"reasoning" yaml:"reasoning"`

	// ConsensusThreshold is the success ratio below which confidence is
	// penalised further. Must lie in [0, 1].
	ConsensusThreshold float64 `json:"consensus_threshold" yaml:"consensus_threshold"`

	// Weights aggregates stage confidences. Zero value means DefaultWeights.
	Weights Weights `json:"weights" yaml:"weights"`
}

// Stage returns the EngineConfig for the given stage.
func (c PipelineConfig) Stage(s Stage) EngineConfig {
	switch s {
	case StageKnowledge:
		return c.Knowledge
	case StageData:
		return c.Data
	default:
		return c.Reasoning
	}
}

// EngineResult is the outcome of one stage invocation.
type EngineResult struct {
	Stage          Stage         `json:"stage"`
	Output         Output        `json:"output"`
	Confidence     float64       `json:"confidence"`
	ProcessingTime time.Duration `json:"processing_time"`

	// ProvidersUsed is the ordered subset of configured providers that
	// contributed to the consensus.
	ProvidersUsed []string `json:"providers_used"`

	// Selected is the provider whose response was chosen as consensus.
	Selected string `json:"selected,omitempty"`

	// Failures records why excluded providers were dropped. Informational only.
	Failures []*ProviderError `json:"failures,omitempty"`
}

// AnalysisResult is the terminal artifact of one Analyze call. The engine
// does not persist it.
type AnalysisResult struct {
	ID     string        `json:"id"`
	Domain string        `json:"domain,omitempty"`
	State  PipelineState `json:"state"`

	Knowledge EngineResult `json:"knowledge"`
	Data      EngineResult `json:"data"`
	Reasoning EngineResult `json:"reasoning"`

	FinalOutput         Output        `json:"final_output"`
	OverallConfidence   float64       `json:"overall_confidence"`
	TotalProcessingTime time.Duration `json:"total_processing_time"`
	CreatedAt           int64         `json:"created_at"`
}

// StageResult returns the EngineResult for the given stage.
func (r *AnalysisResult) StageResult(s Stage) *EngineResult {
	switch s {
	case StageKnowledge:
		return &r.Knowledge
	case StageData:
		return &r.Data
	default:
		return &r.Reasoning
	}
}
