// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driving"
)

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewGaps lists ledger gaps.
	ViewGaps ViewType = iota
	// ViewGapDetail shows one gap with its attempts.
	ViewGapDetail
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewGaps:
		return "gaps"
	case ViewGapDetail:
		return "gap_detail"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// GapsLoaded carries a page of the ledger and its summary.
type GapsLoaded struct {
	Gaps    []domain.MetadataGap
	Summary *driving.LedgerSummary
	Err     error
}

// GapSelected asks for the details of a gap.
type GapSelected struct {
	GapID string
}

// GapDetailsLoaded carries the details of the selected gap.
type GapDetailsLoaded struct {
	Details *driving.GapDetails
	Err     error
}

// RetryScheduled reports the outcome of a forced retry.
type RetryScheduled struct {
	GapID    string
	Strategy domain.Strategy
	Err      error
}

// RunStatusLoaded carries the orchestrator status.
type RunStatusLoaded struct {
	Status *domain.RunStatus
	Err    error
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}
