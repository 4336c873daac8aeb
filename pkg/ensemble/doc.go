// Package ensemble fans one prompt out to a set of providers and reduces
// the surviving answers to a single consensus with a confidence score.
//
// A provider that fails, for any reason, is excluded from the round; the
// round fails only when nobody answers. The reducer picks the answer most
// similar to the others, breaking ties by configuration order, and the
// confidence combines the success ratio with the agreement among the
// survivors (see Confidence).
package ensemble
