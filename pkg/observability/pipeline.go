package observability

import (
	"context"
	"errors"

	"github.com/rhuss/consensus/pkg/api"
)

// PipelineMetrics records stage and analysis metrics for one domain. It
// satisfies the engine's Observer interface.
type PipelineMetrics struct {
	domain string
}

// NewPipelineMetrics returns an observer that labels metrics with domain.
func NewPipelineMetrics(domain string) *PipelineMetrics {
	return &PipelineMetrics{domain: domain}
}

// StateChanged is a no-op; transitions are only logged.
func (m *PipelineMetrics) StateChanged(string, api.PipelineState, api.PipelineState) {}

// StageCompleted records duration and confidence of a finished stage.
func (m *PipelineMetrics) StageCompleted(_ string, res *api.EngineResult) {
	StageDuration.WithLabelValues(m.domain, string(res.Stage)).Observe(res.ProcessingTime.Seconds())
	StageConfidence.WithLabelValues(m.domain, string(res.Stage)).Observe(res.Confidence)
}

// AnalysisFinished counts the analysis by outcome.
func (m *PipelineMetrics) AnalysisFinished(_ string, err error) {
	AnalysesTotal.WithLabelValues(m.domain, Outcome(err)).Inc()
}

// Outcome classifies an Analyze error into a metric label.
func Outcome(err error) string {
	if err == nil {
		return "completed"
	}
	var ae *api.AnalysisError
	if errors.As(err, &ae) {
		return string(ae.Kind)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}
	return "error"
}
