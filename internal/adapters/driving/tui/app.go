package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/mce/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/mce/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/mce/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/mce/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/mce/internal/adapters/driving/tui/views/gapdetail"
	"github.com/custodia-labs/mce/internal/adapters/driving/tui/views/gaps"
)

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap

	gapsView   *gaps.View
	detailView *gapdetail.View
	statusBar  *status.Bar

	currentView messages.ViewType
	// previousView is restored when help is closed.
	previousView messages.ViewType

	err    error
	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ctx context.Context, ports *Ports) (*App, error) {
	if ports == nil {
		return nil, fmt.Errorf("creating app: %w", ErrMissingGapService)
	}
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()
	return &App{
		ports:       ports,
		ctx:         ctx,
		styles:      s,
		keymap:      km,
		gapsView:    gaps.NewView(ctx, s, ports.Gaps),
		detailView:  gapdetail.NewView(ctx, s, ports.Orchestrator),
		statusBar:   status.NewBar(s, km),
		currentView: messages.ViewGaps,
	}, nil
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	a.statusBar.SetState(status.StateLoading)
	return tea.Batch(
		tea.SetWindowTitle("mce - gap ledger"),
		a.gapsView.Init(),
		a.loadRunStatus(),
	)
}

// Update implements tea.Model.
//
//nolint:gocyclo // central message handler
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case messages.GapsLoaded:
		a.gapsView, cmd = a.gapsView.Update(msg)
		if msg.Err != nil {
			a.setError(msg.Err)
			return a, cmd
		}
		a.statusBar.Clear()
		if a.currentView == messages.ViewGapDetail {
			a.statusBar.SetState(status.StateDetail)
		}
		a.statusBar.SetSummary(msg.Summary)
		return a, cmd

	case messages.GapSelected:
		a.statusBar.SetState(status.StateLoading)
		return a, a.loadDetails(msg.GapID)

	case messages.GapDetailsLoaded:
		if msg.Err != nil {
			a.setError(msg.Err)
			return a, nil
		}
		a.detailView.SetDetails(msg.Details)
		a.currentView = messages.ViewGapDetail
		a.statusBar.Clear()
		a.statusBar.SetState(status.StateDetail)
		return a, nil

	case messages.RetryScheduled:
		a.detailView, cmd = a.detailView.Update(msg)
		if msg.Err != nil {
			a.err = msg.Err
			return a, cmd
		}
		return a, tea.Batch(cmd, a.gapsView.Load())

	case messages.RunStatusLoaded:
		if msg.Err == nil {
			a.statusBar.SetRunStatus(msg.Status)
		}
		return a, nil

	case messages.ViewChanged:
		a.currentView = msg.View
		a.statusBar.Clear()
		if msg.View == messages.ViewGapDetail {
			a.statusBar.SetState(status.StateDetail)
		}
		return a, nil

	case messages.ErrorOccurred:
		a.setError(msg.Err)
		if a.currentView == messages.ViewGapDetail {
			a.detailView, cmd = a.detailView.Update(msg)
		}
		return a, cmd

	case messages.Quit:
		return a, tea.Quit
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	k := msg.String()

	if k == "ctrl+c" {
		return a, tea.Quit
	}

	if a.currentView == messages.ViewHelp {
		if keymap.Matches(k, a.keymap.Back) || keymap.Matches(k, a.keymap.Help) {
			a.currentView = a.previousView
			a.statusBar.SetState(status.StateReady)
			if a.currentView == messages.ViewGapDetail {
				a.statusBar.SetState(status.StateDetail)
			}
		}
		return a, nil
	}

	if keymap.Matches(k, a.keymap.Help) {
		a.previousView = a.currentView
		a.currentView = messages.ViewHelp
		a.statusBar.SetState(status.StateHelp)
		return a, nil
	}

	switch a.currentView {
	case messages.ViewGaps:
		if k == "q" {
			return a, tea.Quit
		}
		if keymap.Matches(k, a.keymap.Refresh) {
			a.statusBar.SetState(status.StateLoading)
			return a, tea.Batch(a.gapsView.Load(), a.loadRunStatus())
		}
		a.gapsView, cmd = a.gapsView.Update(msg)
		return a, cmd

	case messages.ViewGapDetail:
		a.detailView, cmd = a.detailView.Update(msg)
		return a, cmd

	case messages.ViewHelp:
	}
	return a, nil
}

func (a *App) setError(err error) {
	a.err = err
	a.statusBar.SetState(status.StateError)
	a.statusBar.SetMessage(err.Error())
}

func (a *App) loadDetails(gapID string) tea.Cmd {
	ctx, service := a.ctx, a.ports.Gaps
	return func() tea.Msg {
		details, err := service.Get(ctx, gapID)
		return messages.GapDetailsLoaded{Details: details, Err: err}
	}
}

func (a *App) loadRunStatus() tea.Cmd {
	ctx, orch := a.ctx, a.ports.Orchestrator
	return func() tea.Msg {
		s, err := orch.Status(ctx)
		return messages.RunStatusLoaded{Status: s, Err: err}
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	var body string
	switch a.currentView {
	case messages.ViewGapDetail:
		body = a.detailView.View()
	case messages.ViewHelp:
		body = a.viewHelp()
	default:
		body = a.gapsView.View()
	}
	return body + "\n\n" + a.statusBar.View()
}

// viewHelp renders the help view.
func (a *App) viewHelp() string {
	out := a.styles.Title.Render("Help") + "\n\n"
	for _, group := range a.keymap.FullHelp() {
		for _, b := range group {
			h := b.Help()
			out += fmt.Sprintf("  %-10s %s\n", h.Key, h.Desc)
		}
		out += "\n"
	}
	return out + a.styles.Muted.Render("[esc] back")
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has received its dimensions.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.gapsView.SetDimensions(width, height)
	a.detailView.SetDimensions(width, height)
	a.statusBar.SetWidth(width)
}
