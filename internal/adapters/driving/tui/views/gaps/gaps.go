// Package gaps provides the gap list view for the TUI.
package gaps

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/mce/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/mce/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/mce/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driving"
)

// Filter is a named status selection.
type Filter struct {
	Label    string
	Statuses []domain.GapStatus
}

// Filters are cycled in order. An empty status list selects open and retryable gaps.
var Filters = []Filter{
	{Label: "open"},
	{Label: "escalated", Statuses: []domain.GapStatus{domain.GapRequiresHumanInput}},
	{Label: "failed", Statuses: []domain.GapStatus{domain.GapFailed}},
	{Label: "resolved", Statuses: []domain.GapStatus{domain.GapResolved, domain.GapResolvedAuto}},
	{Label: "all", Statuses: domain.AllGapStatuses},
}

// View lists ledger gaps.
type View struct {
	styles  *styles.Styles
	service driving.GapService
	ctx     context.Context

	list   *list.GapList
	filter int
	width  int
	height int
	err    error
}

// NewView creates a new gap list view.
func NewView(ctx context.Context, s *styles.Styles, service driving.GapService) *View {
	return &View{
		styles:  s,
		service: service,
		ctx:     ctx,
		list:    list.NewGapList(s),
	}
}

// Init loads the first page of gaps.
func (v *View) Init() tea.Cmd {
	return v.Load()
}

// Load fetches gaps matching the current filter together with the ledger summary.
func (v *View) Load() tea.Cmd {
	ctx, service := v.ctx, v.service
	filter := domain.GapFilter{Statuses: Filters[v.filter].Statuses}
	return func() tea.Msg {
		gaps, err := service.List(ctx, filter)
		if err != nil {
			return messages.GapsLoaded{Err: err}
		}
		summary, err := service.Summary(ctx)
		return messages.GapsLoaded{Gaps: gaps, Summary: summary, Err: err}
	}
}

// Update handles messages for the gap list.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case messages.GapsLoaded:
		v.err = msg.Err
		if msg.Err == nil {
			v.list.SetGaps(msg.Gaps)
		}
		return v, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "f":
			v.filter = (v.filter + 1) % len(Filters)
			return v, v.Load()
		case "r":
			return v, v.Load()
		case "enter":
			g := v.list.SelectedGap()
			if g == nil {
				return v, nil
			}
			id := g.ID
			return v, func() tea.Msg { return messages.GapSelected{GapID: id} }
		}
		v.list, _ = v.list.Update(msg)
		return v, nil
	}
	return v, nil
}

// View renders the gap list.
func (v *View) View() string {
	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Gap Ledger"))
	b.WriteString("  ")
	b.WriteString(v.styles.Muted.Render(fmt.Sprintf("[%s] %d gaps", Filters[v.filter].Label, v.list.Count())))
	b.WriteString("\n\n")

	if v.err != nil {
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
		return b.String()
	}
	b.WriteString(v.list.View())
	return b.String()
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	// Title, spacing and status bar.
	v.list.SetDimensions(width, height-4)
}

// Filter returns the active filter.
func (v *View) Filter() Filter {
	return Filters[v.filter]
}

// SelectedGap returns the selected gap, or nil.
func (v *View) SelectedGap() *domain.MetadataGap {
	return v.list.SelectedGap()
}

// Err returns the last load error.
func (v *View) Err() error {
	return v.err
}
