package engine

import (
	"fmt"

	"github.com/rhuss/consensus/pkg/api"
	"github.com/rhuss/consensus/pkg/debug"
	"github.com/rhuss/consensus/pkg/structured"
)

// ParseResult is the outcome of a stage parser: either Ok or Fallback.
// The interface is sealed; no other implementations exist.
type ParseResult interface {
	// Output returns the structured map. It is never nil.
	Output() api.Output

	parseResult()
}

// Ok is a successful parse.
type Ok struct {
	Value api.Output
}

// Output implements ParseResult.
func (o Ok) Output() api.Output {
	if o.Value == nil {
		return api.Output{}
	}
	return o.Value
}

func (Ok) parseResult() {}

// Fallback is a parse that could not make sense of the text. Value always
// carries api.ErrorField.
type Fallback struct {
	Value api.Output
}

// NewFallback builds a Fallback with the given reason and the raw text.
func NewFallback(reason, raw string) Fallback {
	return Fallback{Value: api.Output{api.ErrorField: reason, "raw": raw}}
}

// Output implements ParseResult.
func (f Fallback) Output() api.Output {
	out := f.Value
	if out == nil {
		out = api.Output{}
	}
	if !out.HasError() {
		out[api.ErrorField] = "parse failed"
	}
	return out
}

func (Fallback) parseResult() {}

// ParseJSON is the default parser: the first JSON object in the text, or
// a Fallback when there is none.
func ParseJSON(text string) ParseResult {
	if obj, ok := structured.ExtractObject(text); ok {
		return Ok{Value: obj}
	}
	return NewFallback("response did not contain a JSON object", text)
}

// safeParse runs a domain parser and guarantees a ParseResult, even when
// the parser panics or returns nil.
func safeParse(stage api.Stage, hooks StageHooks, text string) (result ParseResult) {
	defer func() {
		if r := recover(); r != nil {
			debug.Log("engine", "stage parser panicked", "stage", stage, "panic", fmt.Sprint(r))
			result = NewFallback(fmt.Sprintf("parser panicked: %v", r), text)
		}
	}()

	result = hooks.ParseOutput(text)
	if result == nil {
		return NewFallback("parser returned no result", text)
	}
	return result
}
