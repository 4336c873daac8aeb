// Package engine runs the three-stage analysis pipeline.
//
// A Pipeline executes Knowledge, Data and Reasoning in that order. Each
// stage asks the domain Agent for its prompts, fans them out through the
// ensemble, and hands the selected text back to the Agent's parser. The
// parsed output of a stage becomes prior context for the next one. A stage
// in which no provider answers fails the whole analysis; later stages are
// never started.
package engine
