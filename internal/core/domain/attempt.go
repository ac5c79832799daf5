package domain

import "time"

// Strategy is a resolution action the orchestrator can take for a gap.
type Strategy string

// Resolution strategies, cheapest first.
const (
	StrategySemanticLookup   Strategy = "semantic_lookup"
	StrategyTargetedCodeScan Strategy = "targeted_code_scan"
	StrategyTargetedDocScan  Strategy = "targeted_doc_scan"
	StrategyEscalate         Strategy = "escalate"
)

// IsValid returns true if the strategy is recognised.
func (s Strategy) IsValid() bool {
	switch s {
	case StrategySemanticLookup, StrategyTargetedCodeScan, StrategyTargetedDocScan, StrategyEscalate:
		return true
	default:
		return false
	}
}

// InProgressStatus returns the gap status held while the strategy runs.
func (s Strategy) InProgressStatus() GapStatus {
	switch s {
	case StrategySemanticLookup:
		return GapInProgressSemantic
	case StrategyTargetedCodeScan:
		return GapInProgressTargetedCode
	case StrategyTargetedDocScan:
		return GapInProgressTargetedDoc
	default:
		return GapRequiresHumanInput
	}
}

// Outcome is the observed result of one attempt.
type Outcome string

// Attempt outcomes.
const (
	// OutcomeSuccess means the action produced a result above the confidence threshold.
	OutcomeSuccess Outcome = "success"

	// OutcomeNoResult means the action ran but produced nothing usable.
	OutcomeNoResult Outcome = "no_result"

	// OutcomeFailed means the collaborator failed after its own retries.
	OutcomeFailed Outcome = "failed"
)

// AttemptRecord is one entry of a gap's resolution history.
type AttemptRecord struct {
	GapID      string
	Strategy   Strategy
	At         time.Time
	Outcome    Outcome
	Confidence float64
	Notes      string
}

// AttemptHistory is the ordered attempt log of a single gap.
type AttemptHistory []AttemptRecord

// Tried reports whether the strategy was attempted at least once.
func (h AttemptHistory) Tried(s Strategy) bool {
	for _, r := range h {
		if r.Strategy == s {
			return true
		}
	}
	return false
}

// BestConfidence returns the highest confidence observed for the strategy,
// and false when it was never tried.
func (h AttemptHistory) BestConfidence(s Strategy) (float64, bool) {
	best, found := 0.0, false
	for _, r := range h {
		if r.Strategy != s {
			continue
		}
		if !found || r.Confidence > best {
			best = r.Confidence
		}
		found = true
	}
	return best, found
}

// Last returns the most recent attempt, if any.
func (h AttemptHistory) Last() (AttemptRecord, bool) {
	if len(h) == 0 {
		return AttemptRecord{}, false
	}
	return h[len(h)-1], true
}
