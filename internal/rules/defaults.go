package rules

import (
	"fmt"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
)

// RegisterDefaults registers all built-in rule builders with the registry.
// Call this during application initialisation to enable standard rules.
func RegisterDefaults(r *Registry) {
	r.RegisterBuilder(EntityMissingDescription, newEntityMissingDescription)
	r.RegisterBuilder(FieldMissingDataType, newFieldMissingDataType)
	r.RegisterBuilder(FieldMissingDescription, newFieldMissingDescription)
	r.RegisterBuilder(EntityWithoutFields, newEntityWithoutFields)
	r.RegisterBuilder(EntityLowConfidence, newEntityLowConfidence)
	r.RegisterBuilder(EntityMissingCrossReference, newEntityMissingCrossReference)
}

// NewDefaultRegistry builds and activates every built-in rule, applying overrides.
// A nil overrides value activates the built-ins with their defaults.
func NewDefaultRegistry(overrides *Overrides) (*Registry, error) {
	r := NewRegistry()
	RegisterDefaults(r)

	if overrides != nil {
		for id := range overrides.Rules {
			if !r.Has(id) {
				return nil, fmt.Errorf("%w: override for unknown rule %q", domain.ErrInvalidInput, id)
			}
		}
	}

	for _, id := range r.Names() {
		var o RuleOverride
		if overrides != nil {
			o = overrides.Rules[id]
		}
		if !o.IsEnabled() {
			continue
		}

		rule, err := r.Build(id, o.Params)
		if err != nil {
			return nil, fmt.Errorf("build rule %s: %w", id, err)
		}
		r.Register(o.apply(rule))
	}
	return r, nil
}

// overriddenRule replaces the declarative part of a rule.
type overriddenRule struct {
	driven.GapRule
	def domain.RuleDefinition
}

func (r *overriddenRule) Definition() domain.RuleDefinition {
	return r.def
}
