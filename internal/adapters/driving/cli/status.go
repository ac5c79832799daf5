package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the current or last run",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if orchestrator == nil {
		return errors.New("orchestrator not configured")
	}

	status, err := orchestrator.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	if status.RunID == "" {
		cmd.Println("No run recorded.")
		return nil
	}

	state := "finished"
	if status.Running {
		state = "running"
	}
	cmd.Printf("Run:      %s (%s)\n", status.RunID, state)
	cmd.Printf("Phase:    %s\n", status.Phase)
	cmd.Printf("Pass:     %d\n", status.Pass)
	cmd.Printf("Attempts: %d\n", status.GapsWorked)
	return nil
}
