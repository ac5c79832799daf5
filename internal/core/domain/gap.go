package domain

import (
	"fmt"
	"slices"
	"time"
)

// GapKind classifies a detected deficiency.
type GapKind string

// Known gap kinds. Rules may introduce new kinds; these are the built-ins.
const (
	GapMissingDescription    GapKind = "missing_description"
	GapMissingDataType       GapKind = "missing_data_type"
	GapMissingFields         GapKind = "missing_fields"
	GapMissingCrossReference GapKind = "missing_cross_reference"
	GapLowConfidence         GapKind = "low_confidence"
)

// PrefersSemantic reports whether gaps of this kind are likely already
// described elsewhere, making a semantic lookup the natural first attempt.
func (k GapKind) PrefersSemantic() bool {
	return k == GapMissingDescription || k == GapMissingCrossReference
}

// Severity is the rule-declared impact of a gap.
type Severity string

// Severity levels.
const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// GapStatus is the lifecycle state of a MetadataGap.
type GapStatus string

// Gap lifecycle states.
const (
	GapOpen                   GapStatus = "open"
	GapInProgressSemantic     GapStatus = "in_progress_semantic"
	GapInProgressTargetedCode GapStatus = "in_progress_targeted_code"
	GapInProgressTargetedDoc  GapStatus = "in_progress_targeted_doc"
	GapRequiresRetry          GapStatus = "requires_retry"
	GapResolved               GapStatus = "resolved"
	GapResolvedAuto           GapStatus = "resolved_auto"
	GapFailed                 GapStatus = "failed"
	GapRequiresHumanInput     GapStatus = "requires_human_input"
)

// AllGapStatuses lists every status in lifecycle order.
var AllGapStatuses = []GapStatus{
	GapOpen, GapInProgressSemantic, GapInProgressTargetedCode, GapInProgressTargetedDoc,
	GapRequiresRetry, GapResolved, GapResolvedAuto, GapFailed, GapRequiresHumanInput,
}

// IsValid returns true if the status is recognised.
func (s GapStatus) IsValid() bool {
	return slices.Contains(AllGapStatuses, s)
}

// IsWorkable reports whether the gap is waiting for a resolution attempt.
func (s GapStatus) IsWorkable() bool {
	return s == GapOpen || s == GapRequiresRetry
}

// IsInProgress reports whether a resolution attempt is running.
func (s GapStatus) IsInProgress() bool {
	return s == GapInProgressSemantic || s == GapInProgressTargetedCode || s == GapInProgressTargetedDoc
}

// IsActive reports whether the gap still needs automated work.
func (s GapStatus) IsActive() bool {
	return s.IsWorkable() || s.IsInProgress()
}

// IsResolved reports whether the gap was closed successfully.
func (s GapStatus) IsResolved() bool {
	return s == GapResolved || s == GapResolvedAuto
}

// IsTerminal reports whether the gap reached a final state.
func (s GapStatus) IsTerminal() bool {
	return s.IsResolved() || s == GapFailed || s == GapRequiresHumanInput
}

// MetadataGap is a detected deficiency in the metadata graph.
type MetadataGap struct {
	// ID is the stable composite identity, see GapID.
	ID string

	// RuleID names the rule that detected the gap.
	RuleID string

	// Kind classifies the deficiency.
	Kind GapKind

	// Target is the node the gap is about.
	Target NodeRef

	// Description is a human-readable explanation, refreshed on each detection.
	Description string

	// Severity is the rule-declared impact.
	Severity Severity

	// Priority orders resolution; lower is more urgent.
	Priority int

	// Status is the lifecycle state.
	Status GapStatus

	// AttemptCount counts resolution attempts across reopenings.
	AttemptCount int

	// LastAttemptAt is when the last attempt finished. Zero if never attempted.
	LastAttemptAt time.Time

	// CreatedAt is when the gap was first detected.
	CreatedAt time.Time

	// UpdatedAt is when the gap record was last written.
	UpdatedAt time.Time

	// ResolutionNotes is free text accumulated by resolution attempts.
	ResolutionNotes string

	// SuggestedActions is the ordered list of strategies the rule suggests.
	SuggestedActions []Strategy
}

// GapID derives the stable identity of a gap from its rule and target node.
func GapID(ruleID, targetID string) string {
	return ruleID + "|" + targetID
}

// Validate checks the fields every stored gap must carry.
// A failure is an invariant violation, not a user error.
func (g *MetadataGap) Validate() error {
	switch {
	case g.RuleID == "":
		return fmt.Errorf("%w: gap %q has no rule id", ErrInvariantViolation, g.ID)
	case g.Target.ID == "" || !g.Target.Type.IsValid():
		return fmt.Errorf("%w: gap %q has no valid target", ErrInvariantViolation, g.ID)
	case g.ID != GapID(g.RuleID, g.Target.ID):
		return fmt.Errorf("%w: gap id %q does not match rule %q and target %q",
			ErrInvariantViolation, g.ID, g.RuleID, g.Target.ID)
	case g.Kind == "":
		return fmt.Errorf("%w: gap %q has no kind", ErrInvariantViolation, g.ID)
	case !g.Status.IsValid():
		return fmt.Errorf("%w: gap %q has unknown status %q", ErrInvariantViolation, g.ID, g.Status)
	}
	return nil
}

// AppendNote adds a line to the resolution notes.
func (g *MetadataGap) AppendNote(note string) {
	if note == "" {
		return
	}
	if g.ResolutionNotes != "" {
		g.ResolutionNotes += "\n"
	}
	g.ResolutionNotes += note
}

// Clone returns a deep copy of the gap.
func (g MetadataGap) Clone() MetadataGap {
	g.SuggestedActions = slices.Clone(g.SuggestedActions)
	return g
}

// GapFilter selects gaps from the ledger.
type GapFilter struct {
	// Statuses restricts to these statuses. Empty means any.
	Statuses []GapStatus

	// Kinds restricts to these kinds. Empty means any.
	Kinds []GapKind

	// RuleIDs restricts to gaps raised by these rules. Empty means any.
	RuleIDs []string

	// TargetIDs restricts to gaps about these nodes. Empty means any.
	TargetIDs []string

	// Limit caps the number of results. Zero means no limit.
	Limit int
}

// Matches reports whether the gap passes the filter (Limit is not applied).
func (f GapFilter) Matches(g *MetadataGap) bool {
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, g.Status) {
		return false
	}
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, g.Kind) {
		return false
	}
	if len(f.RuleIDs) > 0 && !slices.Contains(f.RuleIDs, g.RuleID) {
		return false
	}
	if len(f.TargetIDs) > 0 && !slices.Contains(f.TargetIDs, g.Target.ID) {
		return false
	}
	return true
}

// RuleDefinition is the declarative part of a gap rule.
type RuleDefinition struct {
	// ID uniquely names the rule; it is half of every gap identity it produces.
	ID string

	// Kind is the gap kind emitted for failing nodes.
	Kind GapKind

	// TargetType is the node type the rule inspects.
	TargetType NodeType

	// Severity is the default severity of emitted gaps.
	Severity Severity

	// Priority is the default priority of emitted gaps.
	Priority int

	// Suggested is the ordered list of strategies worth trying.
	Suggested []Strategy

	// Description explains what the rule checks.
	Description string
}

// CandidateGap is one failing node reported by a rule evaluation.
type CandidateGap struct {
	RuleID      string
	Kind        GapKind
	Target      NodeRef
	Description string
	Severity    Severity
	Priority    int
	Suggested   []Strategy
}

// GapID returns the identity the candidate will be stored under.
func (c CandidateGap) GapID() string {
	return GapID(c.RuleID, c.Target.ID)
}
