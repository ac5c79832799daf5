package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mce/internal/core/ports/driven"
)

func TestRegistry_BuildUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Build("nope", nil)
	assert.Error(t, err)
	assert.False(t, r.Has("nope"))
}

func TestRegistry_RegisterDefaults(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	assert.Equal(t, []string{
		EntityLowConfidence,
		EntityMissingCrossReference,
		EntityMissingDescription,
		EntityWithoutFields,
		FieldMissingDataType,
		FieldMissingDescription,
	}, r.Names())
	assert.Empty(t, r.Rules(), "builders are not active until registered")
}

func TestRegistry_RegisterReplacesAndOrders(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	for _, id := range []string{FieldMissingDataType, EntityMissingDescription} {
		rule, err := r.Build(id, nil)
		require.NoError(t, err)
		r.Register(rule)
	}
	again, err := r.Build(EntityMissingDescription, nil)
	require.NoError(t, err)
	r.Register(again)

	rules := r.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, EntityMissingDescription, rules[0].Definition().ID)
	assert.Equal(t, FieldMissingDataType, rules[1].Definition().ID)

	got, ok := r.Get(EntityMissingDescription)
	assert.True(t, ok)
	assert.Same(t, again, got)

	r.Unregister(EntityMissingDescription)
	_, ok = r.Get(EntityMissingDescription)
	assert.False(t, ok)
}

func TestRegistry_ImplementsInterface(t *testing.T) {
	var _ driven.RuleRegistry = NewRegistry()
}
