// Package api defines the shared contracts of the consensus pipeline.
//
// It holds the configuration and result types passed between the provider
// adapters, the ensemble orchestrator and the three-stage engine, the typed
// error taxonomy (ProviderError, EngineFailure, AnalysisError, APIError),
// pipeline state machine validation, and analysis ID generation.
//
// The package performs no I/O and depends only on the standard library, so
// every other package in the module can import it without cycles.
//
// Core types:
//   - [EngineConfig]: ensemble configuration for one stage
//   - [PipelineConfig]: the three stage configurations plus the consensus threshold
//   - [EngineResult]: the outcome of one stage
//   - [AnalysisResult]: the terminal artifact of one Analyze call
//   - [ProviderError], [EngineFailure], [AnalysisError]: failure taxonomy
package api
