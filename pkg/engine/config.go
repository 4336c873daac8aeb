package engine

import (
	"github.com/rhuss/consensus/pkg/api"
	"github.com/rhuss/consensus/pkg/ensemble"
)

// Config holds configuration for a Pipeline.
type Config struct {
	// Pipeline holds the per-stage ensembles, the consensus threshold and
	// the stage weights.
	Pipeline api.PipelineConfig

	// MaxConcurrency caps simultaneous provider calls within a stage.
	// Zero or negative means no cap.
	MaxConcurrency int

	// Similarity overrides the consensus similarity function. Nil means
	// ensemble.StructuralSimilarity.
	Similarity ensemble.SimilarityFunc

	// Observer receives state transitions and stage results. Nil means
	// transitions are only debug-logged.
	Observer Observer
}

// weights returns the effective, normalized stage weights.
func (c Config) weights() api.Weights {
	return c.Pipeline.Weights.Normalized()
}
