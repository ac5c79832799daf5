// Package rules provides the built-in gap rules and the registry that activates them.
package rules

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/custodia-labs/mce/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.RuleRegistry = (*Registry)(nil)

// BuilderFunc creates a GapRule from generic params.
// Params is a map of rule-specific settings parsed from rules.yaml.
type BuilderFunc func(params map[string]any) (driven.GapRule, error)

// Registry maps rule IDs to their builders and holds the active rule set.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]BuilderFunc
	active   map[string]driven.GapRule
}

// NewRegistry creates an empty rule registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]BuilderFunc),
		active:   make(map[string]driven.GapRule),
	}
}

// RegisterBuilder adds a rule builder.
// ID should be unique and match the built rule's Definition().ID.
func (r *Registry) RegisterBuilder(id string, builder BuilderFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[id] = builder
}

// Build creates a rule by ID with the given params.
// Returns error if the rule ID has no builder.
func (r *Registry) Build(id string, params map[string]any) (driven.GapRule, error) {
	r.mu.RLock()
	builder, ok := r.builders[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown rule: %s", id)
	}
	return builder(params)
}

// Has returns true if a builder with the given ID is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.builders[id]
	return ok
}

// Names returns all builder IDs in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Register activates a rule. Registering an existing rule ID replaces it.
func (r *Registry) Register(rule driven.GapRule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[rule.Definition().ID] = rule
}

// Unregister deactivates a rule.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, id)
}

// Rules returns the active rules ordered by ID.
func (r *Registry) Rules() []driven.GapRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]driven.GapRule, 0, len(r.active))
	for _, rule := range r.active {
		out = append(out, rule)
	}
	slices.SortFunc(out, func(a, b driven.GapRule) int {
		return strings.Compare(a.Definition().ID, b.Definition().ID)
	})
	return out
}

// Get returns the active rule with the given ID.
func (r *Registry) Get(id string) (driven.GapRule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.active[id]
	return rule, ok
}
