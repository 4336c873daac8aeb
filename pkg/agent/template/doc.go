// Package template provides a domain Agent driven by a definition file.
//
// A definition names the domain, the local framework files the agent
// loads, the input fields it requires and, for each pipeline stage, a
// system and a user prompt written as text/template strings. Definitions
// are YAML (.yaml, .yml) or TOML (.toml).
//
// User prompts are rendered with:
//
//	.Domain          the domain name
//	.Input           the processed input map
//	.Frameworks      framework file contents keyed by file name without extension
//	.Prior.Knowledge the knowledge stage output (nil in the knowledge stage)
//	.Prior.Data      the data stage output (nil before the reasoning stage)
//
// and the toJSON function, which renders any value as indented JSON.
package template
