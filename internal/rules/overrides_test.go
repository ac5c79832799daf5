package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mce/internal/core/domain"
)

func TestParseOverrides(t *testing.T) {
	o, err := ParseOverrides([]byte(`
rules:
  entity-low-confidence:
    priority: 3
    severity: high
    params:
      threshold: 0.7
  entity-missing-cross-reference:
    enabled: false
`))
	require.NoError(t, err)
	require.Len(t, o.Rules, 2)

	low := o.Rules[EntityLowConfidence]
	assert.True(t, low.IsEnabled())
	require.NotNil(t, low.Priority)
	assert.Equal(t, 3, *low.Priority)
	assert.Equal(t, domain.SeverityHigh, low.Severity)
	assert.InDelta(t, 0.7, low.Params["threshold"], 1e-9)

	assert.False(t, o.Rules[EntityMissingCrossReference].IsEnabled())
}

func TestParseOverrides_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed", "rules: ["},
		{"negative priority", "rules:\n  entity-without-fields:\n    priority: -1\n"},
		{"unknown severity", "rules:\n  entity-without-fields:\n    severity: critical\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOverrides([]byte(tt.yaml))
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestLoadOverrides_MissingFile(t *testing.T) {
	o, err := LoadOverrides(filepath.Join(t.TempDir(), "rules.yaml"))
	require.NoError(t, err)
	assert.Empty(t, o.Rules)
}

func TestNewDefaultRegistry_AppliesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  entity-without-fields:
    priority: 1
  field-missing-description:
    enabled: false
`), 0o600))

	o, err := LoadOverrides(path)
	require.NoError(t, err)
	r, err := NewDefaultRegistry(o)
	require.NoError(t, err)

	assert.Len(t, r.Rules(), 5)
	_, ok := r.Get(FieldMissingDescription)
	assert.False(t, ok)

	rule, ok := r.Get(EntityWithoutFields)
	require.True(t, ok)
	assert.Equal(t, 1, rule.Definition().Priority)
	assert.Equal(t, domain.GapMissingFields, rule.Definition().Kind)
}

func TestNewDefaultRegistry_UnknownRule(t *testing.T) {
	_, err := NewDefaultRegistry(&Overrides{Rules: map[string]RuleOverride{"made-up": {}}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNewDefaultRegistry_Defaults(t *testing.T) {
	r, err := NewDefaultRegistry(nil)
	require.NoError(t, err)

	priorities := map[string]int{}
	for _, rule := range r.Rules() {
		priorities[rule.Definition().ID] = rule.Definition().Priority
	}
	assert.Equal(t, map[string]int{
		EntityMissingDescription:    2,
		FieldMissingDataType:        2,
		FieldMissingDescription:     3,
		EntityWithoutFields:         4,
		EntityLowConfidence:         4,
		EntityMissingCrossReference: 5,
	}, priorities)
}
