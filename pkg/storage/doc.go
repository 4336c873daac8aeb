// Package storage holds what the report store implementations share:
// sentinel errors and the tenant context helpers.
//
// Store implementations (memory, postgres) satisfy transport.AnalysisStore.
package storage
