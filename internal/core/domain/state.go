package domain

import (
	"maps"
	"time"
)

// Phase is the orchestrator's top-level state.
type Phase string

// Orchestrator phases in execution order.
const (
	PhaseIdle            Phase = "idle"
	PhaseInitialScanning Phase = "initial_scanning"
	PhaseGapAnalysis     Phase = "gap_analysis"
	PhaseGapResolution   Phase = "gap_resolution"
	PhaseFinalizing      Phase = "finalizing"
	PhaseTerminated      Phase = "terminated"
)

// TerminationReason explains why a run stopped.
type TerminationReason string

// Termination reasons.
const (
	// TerminationSuccess means no open or retryable gaps remain.
	TerminationSuccess TerminationReason = "success"

	// TerminationNoProgress means a full pass changed no gap status.
	TerminationNoProgress TerminationReason = "no_progress"

	// TerminationBudgetExhausted means the pass budget ran out.
	TerminationBudgetExhausted TerminationReason = "budget_exhausted"

	// TerminationCancelled means an external cancellation stopped the run between gaps.
	TerminationCancelled TerminationReason = "cancelled"

	// TerminationAborted means an invariant violation aborted the run.
	TerminationAborted TerminationReason = "aborted"
)

// AgentState is the explicit state carried through the control loop
// and checkpointed after every pass.
type AgentState struct {
	RunID string
	Phase Phase
	Pass  int

	// Attempts is the attempt history keyed by gap identity.
	Attempts map[string]AttemptHistory

	// Forced holds strategies explicitly requested for a gap by an external caller.
	// An entry is consumed by the next attempt on that gap.
	Forced map[string]Strategy

	StartedAt time.Time
	UpdatedAt time.Time
}

// NewAgentState creates an empty state for a run.
func NewAgentState(runID string, now time.Time) *AgentState {
	return &AgentState{
		RunID:     runID,
		Phase:     PhaseIdle,
		Attempts:  make(map[string]AttemptHistory),
		Forced:    make(map[string]Strategy),
		StartedAt: now,
		UpdatedAt: now,
	}
}

// History returns the attempt history of a gap.
func (s *AgentState) History(gapID string) AttemptHistory {
	return s.Attempts[gapID]
}

// Record appends an attempt to the gap's history.
func (s *AgentState) Record(rec AttemptRecord) {
	if s.Attempts == nil {
		s.Attempts = make(map[string]AttemptHistory)
	}
	s.Attempts[rec.GapID] = append(s.Attempts[rec.GapID], rec)
}

// Clone returns a deep copy suitable for persisting or returning to callers.
func (s *AgentState) Clone() *AgentState {
	c := *s
	c.Attempts = make(map[string]AttemptHistory, len(s.Attempts))
	for k, v := range s.Attempts {
		c.Attempts[k] = append(AttemptHistory(nil), v...)
	}
	c.Forced = maps.Clone(s.Forced)
	if c.Forced == nil {
		c.Forced = make(map[string]Strategy)
	}
	return &c
}

// RunSummary is the deterministic report emitted when a run terminates.
type RunSummary struct {
	RunID  string
	Reason TerminationReason
	Passes int

	// Resolved counts resolved and resolved_auto gaps.
	Resolved int

	// Failed counts failed gaps.
	Failed int

	// Escalated counts gaps requiring human input.
	Escalated int

	// Open counts gaps left open or retryable (only non-zero on cancellation).
	Open int

	// ByStatus counts every gap by its final status.
	ByStatus map[GapStatus]int

	StartedAt  time.Time
	FinishedAt time.Time
}

// RunStatus is a point-in-time view of an active or finished run.
type RunStatus struct {
	RunID   string
	Running bool
	Phase   Phase
	Pass    int

	// GapsWorked counts gap attempts made so far.
	GapsWorked int
}
