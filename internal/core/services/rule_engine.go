package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
	"github.com/custodia-labs/mce/internal/logger"
)

// RuleEngine applies gap rules to a view of the metadata graph.
type RuleEngine struct {
	registry driven.RuleRegistry
}

// NewRuleEngine creates a rule engine over the registry's active rules.
func NewRuleEngine(registry driven.RuleRegistry) *RuleEngine {
	return &RuleEngine{registry: registry}
}

// EvaluationReport is the combined output of every active rule.
type EvaluationReport struct {
	// Candidates are the failing nodes of all clean rules, ordered by gap identity.
	Candidates []domain.CandidateGap

	// Clean lists the rules that completed without error.
	Clean map[string]bool

	// Errors holds the failure of each rule that did not complete.
	Errors map[string]error
}

// Evaluate applies one rule and yields a candidate per failing node in scope.
// The result is sorted by target ID, so an unchanged graph yields the same candidates.
func (e *RuleEngine) Evaluate(
	ctx context.Context,
	rule driven.GapRule,
	view driven.GraphView,
	scope domain.Scope,
) (candidates []domain.CandidateGap, err error) {
	def := rule.Definition()

	defer func() {
		if r := recover(); r != nil {
			candidates = nil
			err = fmt.Errorf("rule %s panicked: %v", def.ID, r)
		}
	}()

	nodes, err := rule.Select(ctx, view, scope)
	if err != nil {
		return nil, fmt.Errorf("rule %s: select: %w", def.ID, err)
	}

	for i := range nodes {
		node := &nodes[i]
		if !scope.Contains(node.Ref.ID) {
			continue
		}
		failing, description := rule.Check(node)
		if !failing {
			continue
		}
		candidates = append(candidates, domain.CandidateGap{
			RuleID:      def.ID,
			Kind:        def.Kind,
			Target:      node.Ref,
			Description: description,
			Severity:    def.Severity,
			Priority:    def.Priority,
			Suggested:   slices.Clone(def.Suggested),
		})
	}

	slices.SortFunc(candidates, func(a, b domain.CandidateGap) int {
		return strings.Compare(a.Target.ID, b.Target.ID)
	})
	return candidates, nil
}

// EvaluateAll applies every active rule. A failing rule is logged and reported
// in the result; it never stops the remaining rules.
func (e *RuleEngine) EvaluateAll(ctx context.Context, view driven.GraphView, scope domain.Scope) *EvaluationReport {
	report := &EvaluationReport{
		Clean:  make(map[string]bool),
		Errors: make(map[string]error),
	}

	for _, rule := range e.registry.Rules() {
		id := rule.Definition().ID
		candidates, err := e.Evaluate(ctx, rule, view, scope)
		if err != nil {
			logger.Warn("Rule %s failed: %v", id, err)
			recordRuleError(id)
			report.Errors[id] = err
			continue
		}
		report.Clean[id] = true
		report.Candidates = append(report.Candidates, candidates...)
	}

	slices.SortStableFunc(report.Candidates, func(a, b domain.CandidateGap) int {
		return strings.Compare(a.GapID(), b.GapID())
	})
	return report
}
