package driven

import (
	"context"

	"github.com/custodia-labs/mce/internal/core/domain"
)

// GapRule is one completeness check over the metadata graph.
// Rules are read-only: they never write to the graph.
type GapRule interface {
	// Definition returns the declarative part of the rule.
	Definition() domain.RuleDefinition

	// Select returns the nodes the rule applies to within scope.
	Select(ctx context.Context, graph GraphView, scope domain.Scope) ([]domain.NodeView, error)

	// Check reports whether the node fails the rule, with a description of the failure.
	Check(node *domain.NodeView) (failing bool, description string)
}

// RuleRegistry holds the active set of gap rules.
type RuleRegistry interface {
	// Register adds a rule. Registering an existing rule ID replaces it.
	Register(rule GapRule)

	// Rules returns the active rules ordered by ID.
	Rules() []GapRule

	// Get returns the rule with the given ID.
	Get(id string) (GapRule, bool)
}
