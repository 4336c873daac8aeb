// Package transport defines the contracts between the consensus engine and
// its network surfaces.
//
// # Interfaces
//
//   - Analyzer runs one analysis for a domain. It is implemented by the
//     engine dispatcher and wrapped by middleware.
//   - DomainLister reports which domains are served.
//   - AnalysisStore persists analysis reports. It is optional; without it
//     only synchronous analyses are available.
//
// # Middleware
//
// Middleware wraps an Analyzer with cross-cutting behavior. Built-in
// middleware provides panic recovery, request ID assignment
// (X-Request-ID) and structured request logging via log/slog.
//
// # Cancellation
//
// InFlightRegistry maps analysis IDs to cancel functions so that a client
// can abort a running analysis by ID, whichever surface started it.
package transport
