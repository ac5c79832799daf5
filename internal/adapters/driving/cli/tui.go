package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/mce/internal/adapters/driving/tui"
)

// isTerminal reports whether the TUI can take over the terminal.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse the gap ledger interactively",
	Long: `Launch the interactive terminal browser for the gap ledger.

Controls:
  ↑/k, ↓/j - Navigate gaps
  Enter    - Show gap details
  f        - Cycle status filter
  r        - Refresh
  s, c, d  - Force semantic, code scan or doc scan retry (details view)
  Esc      - Back
  ?        - Toggle help
  q        - Quit`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	if !isTerminal() {
		return errors.New("tui requires an interactive terminal; use 'mce gaps' instead")
	}

	app, err := tui.NewApp(cmd.Context(), &tui.Ports{
		Gaps:         gapService,
		Orchestrator: orchestrator,
	})
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}

	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
