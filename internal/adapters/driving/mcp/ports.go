package mcp

import (
	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Orchestrator runs and steers the extraction loop.
	Orchestrator driving.Orchestrator

	// Gaps exposes the gap ledger.
	Gaps driving.GapService

	// Sources are scanned when a run is started with scan enabled.
	Sources []domain.ScanSource
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Gaps == nil {
		return ErrMissingGapService
	}
	if p.Orchestrator == nil {
		return ErrMissingOrchestrator
	}
	return nil
}
