// Package gapdetail provides the gap detail view for the TUI.
package gapdetail

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/mce/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/mce/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driving"
)

// retryKeys maps keys to the strategy they force.
var retryKeys = map[string]domain.Strategy{
	"s": domain.StrategySemanticLookup,
	"c": domain.StrategyTargetedCodeScan,
	"d": domain.StrategyTargetedDocScan,
}

// View shows a gap with its attempt history.
type View struct {
	styles       *styles.Styles
	orchestrator driving.Orchestrator
	ctx          context.Context

	details      *driving.GapDetails
	scrollOffset int
	width        int
	height       int
	notice       string
	err          error
}

// NewView creates a new gap detail view.
func NewView(ctx context.Context, s *styles.Styles, orchestrator driving.Orchestrator) *View {
	return &View{
		styles:       s,
		orchestrator: orchestrator,
		ctx:          ctx,
	}
}

// SetDetails sets the gap to display.
func (v *View) SetDetails(details *driving.GapDetails) {
	v.details = details
	v.scrollOffset = 0
	v.notice = ""
	v.err = nil
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return nil
}

// Update handles messages for the gap detail view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.RetryScheduled:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.err = nil
		v.notice = fmt.Sprintf("next attempt will use %s", msg.Strategy)
		return v, nil

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil
	}
	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	key := msg.String()
	switch key {
	case "up", "k":
		if v.scrollOffset > 0 {
			v.scrollOffset--
		}
		return v, nil
	case "down", "j":
		if v.scrollOffset < v.maxScrollOffset() {
			v.scrollOffset++
		}
		return v, nil
	case "esc":
		return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewGaps} }
	}

	if strategy, ok := retryKeys[key]; ok && v.details != nil {
		return v, v.retry(v.details.Gap.ID, strategy)
	}
	return v, nil
}

func (v *View) retry(gapID string, strategy domain.Strategy) tea.Cmd {
	ctx, orch := v.ctx, v.orchestrator
	return func() tea.Msg {
		err := orch.ForceRetry(ctx, gapID, strategy)
		return messages.RetryScheduled{GapID: gapID, Strategy: strategy, Err: err}
	}
}

// visibleLines returns the number of content lines that fit.
func (v *View) visibleLines() int {
	// Title, separator, notice and status bar.
	return max(v.height-6, 1)
}

func (v *View) maxScrollOffset() int {
	return max(len(v.buildContent())-v.visibleLines(), 0)
}

// buildContent builds the content lines for display.
func (v *View) buildContent() []string {
	if v.details == nil {
		return nil
	}
	g := v.details.Gap

	node := v.styles.Muted.Render("(removed from graph)")
	if v.details.Node != nil {
		node = v.details.Node.Name()
	}

	lines := []string{
		v.field("Gap", g.ID),
		v.field("Rule", g.RuleID),
		v.field("Kind", string(g.Kind)),
		v.field("Target", g.Target.String()),
		v.field("Node", node),
		v.field("Status", v.styles.GapStatus(g.Status).Render(string(g.Status))),
		v.field("Severity", v.styles.Severity(g.Severity).Render(string(g.Severity))+fmt.Sprintf(" (priority %d)", g.Priority)),
		v.field("Attempts", fmt.Sprintf("%d", g.AttemptCount)),
		"",
		g.Description,
	}

	if g.ResolutionNotes != "" {
		lines = append(lines, "", v.styles.Subtitle.Render("Notes"))
		for _, note := range strings.Split(g.ResolutionNotes, "\n") {
			lines = append(lines, "  "+note)
		}
	}

	lines = append(lines, "", v.styles.Subtitle.Render("History"))
	if len(v.details.Attempts) == 0 {
		lines = append(lines, v.styles.Muted.Render("  no attempts"))
	}
	for _, a := range v.details.Attempts {
		line := fmt.Sprintf("  %s  %-20s %-10s %.2f",
			a.At.Format("2006-01-02 15:04:05"), a.Strategy, a.Outcome, a.Confidence)
		if a.Notes != "" {
			line += "  " + v.styles.Muted.Render(a.Notes)
		}
		lines = append(lines, line)
	}
	return lines
}

func (v *View) field(label, value string) string {
	return v.styles.Muted.Render(fmt.Sprintf("%-10s", label)) + " " + value
}

// View renders the gap detail view.
func (v *View) View() string {
	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Gap Details"))
	b.WriteString("\n\n")

	if v.details == nil {
		b.WriteString(v.styles.Muted.Render("No gap selected"))
		return b.String()
	}

	lines := v.buildContent()
	end := min(v.scrollOffset+v.visibleLines(), len(lines))
	b.WriteString(strings.Join(lines[v.scrollOffset:end], "\n"))

	switch {
	case v.err != nil:
		b.WriteString("\n\n" + v.styles.Error.Render("Error: "+v.err.Error()))
	case v.notice != "":
		b.WriteString("\n\n" + v.styles.Success.Render(v.notice))
	}
	return b.String()
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
}

// Details returns the displayed gap.
func (v *View) Details() *driving.GapDetails {
	return v.details
}

// Notice returns the last confirmation message.
func (v *View) Notice() string {
	return v.notice
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
