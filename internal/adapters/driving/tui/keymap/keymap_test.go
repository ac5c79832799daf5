package keymap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultKeyMap_Bindings(t *testing.T) {
	km := DefaultKeyMap()

	assert.Equal(t, []string{"q", "ctrl+c"}, km.Quit.Keys())
	assert.Equal(t, []string{"enter"}, km.Select.Keys())
	assert.Equal(t, []string{"f"}, km.Filter.Keys())
	assert.Equal(t, []string{"s"}, km.RetrySemantic.Keys())
	assert.Equal(t, []string{"c"}, km.RetryCode.Keys())
	assert.Equal(t, []string{"d"}, km.RetryDoc.Keys())
}

func TestKeyMap_HelpSets(t *testing.T) {
	km := DefaultKeyMap()

	assert.Len(t, km.ShortHelp(), 2)
	assert.Len(t, km.ListHelp(), 4)
	assert.Len(t, km.DetailHelp(), 4)

	total := 0
	for _, group := range km.FullHelp() {
		total += len(group)
	}
	assert.Equal(t, 11, total)
}

func TestMatches(t *testing.T) {
	km := DefaultKeyMap()

	assert.True(t, Matches("k", km.Up))
	assert.True(t, Matches("down", km.Down))
	assert.False(t, Matches("x", km.Up))
}
