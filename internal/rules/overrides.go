package rules

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
)

// Overrides is the content of rules.yaml.
//
//	rules:
//	  entity-low-confidence:
//	    priority: 3
//	    params:
//	      threshold: 0.7
//	  entity-missing-cross-reference:
//	    enabled: false
type Overrides struct {
	Rules map[string]RuleOverride `yaml:"rules"`
}

// RuleOverride adjusts one built-in rule.
type RuleOverride struct {
	// Enabled deactivates the rule when false. Nil keeps it active.
	Enabled *bool `yaml:"enabled"`

	// Priority replaces the default priority when set.
	Priority *int `yaml:"priority"`

	// Severity replaces the default severity when set.
	Severity domain.Severity `yaml:"severity"`

	// Params are passed to the rule builder.
	Params map[string]any `yaml:"params"`
}

// IsEnabled reports whether the rule stays active.
func (o RuleOverride) IsEnabled() bool {
	return o.Enabled == nil || *o.Enabled
}

func (o RuleOverride) apply(rule driven.GapRule) driven.GapRule {
	if o.Priority == nil && o.Severity == "" {
		return rule
	}
	def := rule.Definition()
	if o.Priority != nil {
		def.Priority = *o.Priority
	}
	if o.Severity != "" {
		def.Severity = o.Severity
	}
	return &overriddenRule{GapRule: rule, def: def}
}

// LoadOverrides reads rule overrides from a YAML file.
// A missing file yields empty overrides.
func LoadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Overrides{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read rule overrides: %w", err)
	}
	return ParseOverrides(data)
}

// ParseOverrides decodes and validates rule overrides.
func ParseOverrides(data []byte) (*Overrides, error) {
	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("%w: parse rule overrides: %w", domain.ErrInvalidInput, err)
	}

	for id, ro := range o.Rules {
		if ro.Priority != nil && *ro.Priority < 0 {
			return nil, fmt.Errorf("%w: rule %s priority must not be negative", domain.ErrInvalidInput, id)
		}
		switch ro.Severity {
		case "", domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh:
		default:
			return nil, fmt.Errorf("%w: rule %s has unknown severity %q", domain.ErrInvalidInput, id, ro.Severity)
		}
	}
	return &o, nil
}
