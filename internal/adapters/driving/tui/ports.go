// Package tui provides an interactive terminal browser for the gap ledger.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/mce/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the TUI.
type Ports struct {
	// Gaps exposes the gap ledger.
	Gaps driving.GapService

	// Orchestrator reports run status and accepts forced retries.
	Orchestrator driving.Orchestrator
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Gaps == nil {
		return ErrMissingGapService
	}
	if p.Orchestrator == nil {
		return ErrMissingOrchestrator
	}
	return nil
}
