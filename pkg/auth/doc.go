// Package auth provides pluggable authentication for the analysis API.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (credentials
// invalid), or Abstain (can't handle). A configurable default decides
// when all authenticators abstain.
//
// Auth is implemented as HTTP middleware, keeping it decoupled from the
// pipeline. The middleware also injects the tenant into the request
// context so stored analyses are scoped per tenant, and enforces a
// per-subject request rate. RequireScope restricts read-only identities
// (ScopeRead) to GET requests.
package auth
