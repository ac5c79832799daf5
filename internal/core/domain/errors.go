package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvariantViolation indicates the graph model is in a state it must never reach,
	// such as two gaps sharing an identity or a gap missing required fields.
	// It aborts the current pass and propagates to the caller.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrRunInProgress indicates an orchestrator run is already active.
	ErrRunInProgress = errors.New("run in progress")

	// ErrTransient marks a collaborator failure that may succeed on retry.
	ErrTransient = errors.New("transient collaborator failure")

	// ErrScannerUnavailable indicates no scanner is configured for a source kind.
	ErrScannerUnavailable = errors.New("scanner unavailable")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Semantic assessment and LLM-backed extraction are disabled.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Semantic lookups fall back to lexical scoring.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrNoLocation indicates a targeted scan was requested for a node
	// that has no recorded code or document location.
	ErrNoLocation = errors.New("no scan location")

	// ErrRateLimited indicates the collaborator rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)
