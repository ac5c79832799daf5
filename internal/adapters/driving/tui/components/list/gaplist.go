// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/mce/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/mce/internal/core/domain"
)

// linesPerGap is the rendered height of one gap.
const linesPerGap = 2

// GapList displays gaps in a navigable list.
type GapList struct {
	gaps     []domain.MetadataGap
	selected int
	styles   *styles.Styles
	width    int
	height   int
}

// NewGapList creates a new gap list component.
func NewGapList(s *styles.Styles) *GapList {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &GapList{
		styles: s,
		width:  80,
		height: 10,
	}
}

// Init initialises the gap list.
func (l *GapList) Init() tea.Cmd {
	return nil
}

// Update handles list navigation messages.
func (l *GapList) Update(msg tea.Msg) (*GapList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			l.MoveUp()
		case "down", "j":
			l.MoveDown()
		}
	}
	return l, nil
}

// View renders the gap list.
func (l *GapList) View() string {
	if len(l.gaps) == 0 {
		return l.styles.Muted.Render("No gaps")
	}

	visible := l.height / linesPerGap
	if visible < 1 {
		visible = 1
	}
	start := 0
	if l.selected >= visible {
		start = l.selected - visible + 1
	}
	end := min(start+visible, len(l.gaps))

	lines := make([]string, 0, (end-start)*linesPerGap)
	for i := start; i < end; i++ {
		lines = append(lines, l.renderGap(i, &l.gaps[i]))
	}
	return strings.Join(lines, "\n")
}

// renderGap formats a single gap as a title line and a description line.
func (l *GapList) renderGap(index int, g *domain.MetadataGap) string {
	indicator := "  "
	if index == l.selected {
		indicator = "> "
	}

	title := fmt.Sprintf("%s%-22s %s", indicator, g.Kind, g.Target.ID)
	title = truncate(title, l.width-28)

	var titleLine string
	if index == l.selected {
		titleLine = l.styles.Selected.Render(title)
	} else {
		titleLine = l.styles.Normal.Render(title)
	}
	titleLine += "  " + l.styles.GapStatus(g.Status).Render(string(g.Status))

	desc := truncate(g.Description, l.width-6)
	descLine := "    " + l.styles.Severity(g.Severity).Render(string(g.Severity)) + " " + l.styles.Muted.Render(desc)

	return titleLine + "\n" + descLine
}

func truncate(s string, limit int) string {
	if limit < 10 {
		limit = 10
	}
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}

// SetGaps replaces the listed gaps and resets the selection.
func (l *GapList) SetGaps(gaps []domain.MetadataGap) {
	l.gaps = gaps
	l.selected = 0
}

// Gaps returns the listed gaps.
func (l *GapList) Gaps() []domain.MetadataGap {
	return l.gaps
}

// Selected returns the index of the selected gap.
func (l *GapList) Selected() int {
	return l.selected
}

// SelectedGap returns the selected gap, or nil if the list is empty.
func (l *GapList) SelectedGap() *domain.MetadataGap {
	if l.selected < 0 || l.selected >= len(l.gaps) {
		return nil
	}
	return &l.gaps[l.selected]
}

// MoveUp moves selection up.
func (l *GapList) MoveUp() {
	if l.selected > 0 {
		l.selected--
	}
}

// MoveDown moves selection down.
func (l *GapList) MoveDown() {
	if l.selected < len(l.gaps)-1 {
		l.selected++
	}
}

// SetDimensions sets the component dimensions.
func (l *GapList) SetDimensions(width, height int) {
	l.width = width
	l.height = height
}

// Count returns the number of gaps.
func (l *GapList) Count() int {
	return len(l.gaps)
}
