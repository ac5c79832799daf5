package tui

import "errors"

// ErrMissingGapService is returned when the gap service is not provided.
var ErrMissingGapService = errors.New("tui: gap service is required")

// ErrMissingOrchestrator is returned when the orchestrator is not provided.
var ErrMissingOrchestrator = errors.New("tui: orchestrator is required")
