// Package openaicompat provides shared client code for any OpenAI-compatible
// Chat Completions backend. It handles request serialization, response
// parsing, and mapping of HTTP and network failures onto the provider
// error kinds.
//
// Provider adapters (vLLM, LiteLLM, etc.) embed the Client from this package
// and delegate their Complete/ListModels calls to it.
package openaicompat
