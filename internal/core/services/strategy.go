package services

import (
	"fmt"
	"slices"

	"github.com/custodia-labs/mce/internal/core/domain"
)

// Decision is the strategy chosen for a gap and the rule that chose it.
type Decision struct {
	Strategy domain.Strategy
	Reason   string
}

// StrategySelector picks the next resolution action for a gap.
// Selection is a pure function of the gap, its node and its attempt history.
type StrategySelector struct {
	maxAttempts int
}

// NewStrategySelector creates a selector using the attempt budget from settings.
func NewStrategySelector(settings domain.Settings) *StrategySelector {
	return &StrategySelector{maxAttempts: settings.WithDefaults().MaxAttempts}
}

// Select returns the next strategy for gap.
//
// A forced strategy always wins and is the only way a tried strategy runs again.
// Otherwise: escalate once the attempt budget is spent; try semantic lookup first
// when nothing was tried or the gap kind is usually described elsewhere; then a
// targeted code scan at the recorded code location; then a targeted doc scan of
// a linked document; then semantic lookup if it was skipped; else escalate.
// node may be nil, which rules out the targeted scans.
func (s *StrategySelector) Select(
	gap *domain.MetadataGap,
	node *domain.NodeView,
	history domain.AttemptHistory,
	forced domain.Strategy,
) Decision {
	if forced != "" {
		return Decision{Strategy: forced, Reason: "forced by request"}
	}

	if gap.AttemptCount >= s.maxAttempts {
		return Decision{
			Strategy: domain.StrategyEscalate,
			Reason:   fmt.Sprintf("attempt budget of %d exhausted", s.maxAttempts),
		}
	}

	usable := func(st domain.Strategy) bool {
		if history.Tried(st) {
			return false
		}
		return len(gap.SuggestedActions) == 0 || slices.Contains(gap.SuggestedActions, st)
	}

	if usable(domain.StrategySemanticLookup) && (gap.AttemptCount == 0 || gap.Kind.PrefersSemantic()) {
		return Decision{Strategy: domain.StrategySemanticLookup, Reason: "cheapest first attempt"}
	}

	if node != nil {
		if loc, ok := node.CodeLocation(); ok && usable(domain.StrategyTargetedCodeScan) {
			return Decision{
				Strategy: domain.StrategyTargetedCodeScan,
				Reason:   fmt.Sprintf("code provenance at %s:%d", loc.SourceFile, loc.Line),
			}
		}
		if refs := node.DocumentRefs(); len(refs) > 0 && usable(domain.StrategyTargetedDocScan) {
			return Decision{
				Strategy: domain.StrategyTargetedDocScan,
				Reason:   fmt.Sprintf("linked document %s", refs[0]),
			}
		}
	}

	if usable(domain.StrategySemanticLookup) {
		return Decision{Strategy: domain.StrategySemanticLookup, Reason: "no targeted scan applies"}
	}

	return Decision{Strategy: domain.StrategyEscalate, Reason: "all applicable strategies tried"}
}
