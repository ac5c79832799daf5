// Package mcp provides an MCP (Model Context Protocol) server adapter for the
// extraction engine. It lets AI assistants inspect the gap ledger, follow runs
// and steer resolution.
package mcp

import "errors"

var (
	// ErrMissingGapService is returned when the gap service is not provided.
	ErrMissingGapService = errors.New("mcp: gap service is required")

	// ErrMissingOrchestrator is returned when the orchestrator is not provided.
	ErrMissingOrchestrator = errors.New("mcp: orchestrator is required")
)
