package list

import (
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mce/internal/core/domain"
)

func makeGaps(n int) []domain.MetadataGap {
	out := make([]domain.MetadataGap, n)
	for i := range out {
		id := fmt.Sprintf("entity:e%d", i)
		out[i] = domain.MetadataGap{
			ID:          domain.GapID("entity_missing_description", id),
			Kind:        domain.GapMissingDescription,
			Target:      domain.NodeRef{Type: domain.NodeTypeEntity, ID: id},
			Description: "Entity has no description",
			Severity:    domain.SeverityLow,
			Status:      domain.GapOpen,
		}
	}
	return out
}

func TestNewGapList_Defaults(t *testing.T) {
	l := NewGapList(nil)

	assert.Equal(t, 0, l.Count())
	assert.Nil(t, l.SelectedGap())
	assert.Equal(t, "No gaps", l.View())
}

func TestGapList_Navigation(t *testing.T) {
	l := NewGapList(nil)
	l.SetGaps(makeGaps(3))

	l.MoveUp()
	assert.Equal(t, 0, l.Selected())

	l.Update(tea.KeyMsg{Type: tea.KeyDown})
	l.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	l.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	assert.Equal(t, 2, l.Selected())

	l.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("k")})
	require.NotNil(t, l.SelectedGap())
	assert.Equal(t, "entity:e1", l.SelectedGap().Target.ID)
}

func TestGapList_SetGapsResetsSelection(t *testing.T) {
	l := NewGapList(nil)
	l.SetGaps(makeGaps(3))
	l.MoveDown()

	l.SetGaps(makeGaps(2))

	assert.Equal(t, 0, l.Selected())
	assert.Len(t, l.Gaps(), 2)
}

func TestGapList_ViewMarksSelection(t *testing.T) {
	l := NewGapList(nil)
	l.SetDimensions(100, 10)
	l.SetGaps(makeGaps(2))
	l.MoveDown()

	out := l.View()

	assert.Contains(t, out, "> missing_description")
	assert.Contains(t, out, "entity:e0")
	assert.Contains(t, out, "Entity has no description")
}

func TestGapList_ViewScrollsToSelection(t *testing.T) {
	l := NewGapList(nil)
	l.SetDimensions(100, 4)
	l.SetGaps(makeGaps(5))
	for range 4 {
		l.MoveDown()
	}

	out := l.View()

	assert.Contains(t, out, "entity:e4")
	assert.NotContains(t, out, "entity:e0")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 20))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Len(t, truncate("abcdefghijklmnopqrstuvwxyz", 2), 10)
}
