package api

import "fmt"

// PipelineState is the lifecycle state of one Analyze call.
type PipelineState string

const (
	StateIdle             PipelineState = "idle"
	StateRunningKnowledge PipelineState = "running_knowledge"
	StateRunningData      PipelineState = "running_data"
	StateRunningReasoning PipelineState = "running_reasoning"
	StateCompleted        PipelineState = "completed"
	StateFailed           PipelineState = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s PipelineState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// RunningState returns the state in which the given stage executes.
func RunningState(stage Stage) PipelineState {
	switch stage {
	case StageKnowledge:
		return StateRunningKnowledge
	case StageData:
		return StateRunningData
	default:
		return StateRunningReasoning
	}
}

var pipelineTransitions = map[PipelineState][]PipelineState{
	StateIdle:             {StateRunningKnowledge, StateFailed},
	StateRunningKnowledge: {StateRunningData, StateFailed},
	StateRunningData:      {StateRunningReasoning, StateFailed},
	StateRunningReasoning: {StateCompleted, StateFailed},
	StateCompleted:        {},
	StateFailed:           {},
}

// ValidatePipelineTransition checks whether a state transition is valid.
// Stages can only advance in order; any running state may fail; terminal
// states allow no outgoing transitions. Idle may fail directly when the
// input is rejected before the first stage starts.
func ValidatePipelineTransition(from, to PipelineState) error {
	allowed, exists := pipelineTransitions[from]
	if !exists {
		return fmt.Errorf("invalid transition from %q to %q: unknown state", from, to)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("invalid transition from %s to %s", from, to)
}
