package engine

import "errors"

// Error discriminants surfaced by the engine. Callers distinguish them with
// errors.Is; everything else is wrapped context.
var (
	// ErrDimensionMismatch: vector operation over incompatible dimensions.
	// Fatal to the call that raised it.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrMissingEmbedding: the probe embedding is unavailable. The retrieval
	// pipeline recovers by falling back to base-level ranking.
	ErrMissingEmbedding = errors.New("missing embedding")

	// ErrProviderFailure: the external embedder errored or timed out.
	ErrProviderFailure = errors.New("embedding provider failure")

	// ErrNotFound: a referenced entity is absent.
	ErrNotFound = errors.New("not found")

	// ErrInvariant: internal inconsistency (negative access count, non-unit
	// vector in strict mode). Fatal.
	ErrInvariant = errors.New("invariant violation")
)
