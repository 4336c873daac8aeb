// Package mcpserver exposes the analysis pipeline to MCP clients over
// the streamable HTTP transport of github.com/modelcontextprotocol/go-sdk.
//
// Three tools are registered:
//
//   - analyze runs a synchronous analysis for a domain and returns the report
//   - list_domains lists the domains served by this process
//   - get_analysis fetches a stored report by ID (only with a store)
//
// The handler runs in stateless mode so every tool call executes within
// the HTTP request that carried it. Authentication and tenant scoping are
// therefore applied by the same HTTP middleware that guards the REST API.
package mcpserver
