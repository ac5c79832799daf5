package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mce/internal/core/domain"
)

var retryStrategy string

var retryCmd = &cobra.Command{
	Use:   "retry [gap-id]",
	Short: "Force the next attempt on a gap to use a strategy",
	Long: `Requests that the next run resolves the gap with the given strategy.
Escalated and failed gaps are reopened.

Strategies: semantic_lookup, targeted_code_scan, targeted_doc_scan`,
	Args: cobra.ExactArgs(1),
	RunE: runRetry,
}

func init() {
	retryCmd.Flags().StringVarP(&retryStrategy, "strategy", "s", string(domain.StrategyTargetedDocScan),
		"strategy to use for the next attempt")
	rootCmd.AddCommand(retryCmd)
}

func runRetry(cmd *cobra.Command, args []string) error {
	if orchestrator == nil {
		return errors.New("orchestrator not configured")
	}

	strategy := domain.Strategy(retryStrategy)
	if !strategy.IsValid() || strategy == domain.StrategyEscalate {
		return fmt.Errorf("unknown strategy %q", retryStrategy)
	}

	gapID := args[0]
	if err := orchestrator.ForceRetry(cmd.Context(), gapID, strategy); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("gap %s not found", gapID)
		}
		return fmt.Errorf("failed to schedule retry: %w", err)
	}

	cmd.Printf("Gap %s will be retried with %s on the next run.\n", gapID, strategy)
	return nil
}
