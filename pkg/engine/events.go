package engine

import (
	"github.com/rhuss/consensus/pkg/api"
	"github.com/rhuss/consensus/pkg/debug"
)

// Observer is notified about the progress of each analysis. Calls for one
// analysis arrive sequentially; calls for different analyses may arrive
// concurrently. Implementations must not block.
type Observer interface {
	StateChanged(id string, from, to api.PipelineState)
	StageCompleted(id string, res *api.EngineResult)
	AnalysisFinished(id string, err error)
}

// Observers fans notifications out to several observers in order.
func Observers(obs ...Observer) Observer {
	var list multiObserver
	for _, o := range obs {
		if o != nil {
			list = append(list, o)
		}
	}
	return list
}

type multiObserver []Observer

func (m multiObserver) StateChanged(id string, from, to api.PipelineState) {
	for _, o := range m {
		o.StateChanged(id, from, to)
	}
}

func (m multiObserver) StageCompleted(id string, res *api.EngineResult) {
	for _, o := range m {
		o.StageCompleted(id, res)
	}
}

func (m multiObserver) AnalysisFinished(id string, err error) {
	for _, o := range m {
		o.AnalysisFinished(id, err)
	}
}

// debugObserver writes transitions to the "engine" debug category.
type debugObserver struct{}

func (debugObserver) StateChanged(id string, from, to api.PipelineState) {
	debug.Log("engine", "state transition", "analysis_id", id, "from", from, "to", to)
}

func (debugObserver) StageCompleted(string, *api.EngineResult) {}

func (debugObserver) AnalysisFinished(id string, err error) {
	if err != nil {
		debug.Log("engine", "analysis failed", "analysis_id", id, "error", err.Error())
		return
	}
	debug.Log("engine", "analysis completed", "analysis_id", id)
}
