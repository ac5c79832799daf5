package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mce/internal/core/domain"
)

var (
	gapsStatuses []string
	gapsKinds    []string
	gapsRules    []string
	gapsLimit    int
	gapsJSON     bool
)

var gapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "Inspect the gap ledger",
	Long: `Commands for inspecting the metadata gaps detected in the graph.
Without a subcommand, lists open and retryable gaps.`,
	RunE: runGapsList,
}

var gapsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List gaps in resolution order",
	RunE:  runGapsList,
}

var gapsShowCmd = &cobra.Command{
	Use:   "show [gap-id]",
	Short: "Show a gap with its attempt history",
	Args:  cobra.ExactArgs(1),
	RunE:  runGapsShow,
}

var gapsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Count gaps by status",
	RunE:  runGapsSummary,
}

func init() {
	for _, c := range []*cobra.Command{gapsCmd, gapsListCmd} {
		c.Flags().StringSliceVar(&gapsStatuses, "status", nil, "filter by status (default: open, requires_retry)")
		c.Flags().StringSliceVar(&gapsKinds, "kind", nil, "filter by gap kind")
		c.Flags().StringSliceVar(&gapsRules, "rule", nil, "filter by rule id")
		c.Flags().IntVarP(&gapsLimit, "limit", "n", 0, "maximum number of gaps (0 = no limit)")
		c.Flags().BoolVar(&gapsJSON, "json", false, "output gaps as JSON")
	}
	gapsCmd.AddCommand(gapsListCmd)
	gapsCmd.AddCommand(gapsShowCmd)
	gapsCmd.AddCommand(gapsSummaryCmd)
	rootCmd.AddCommand(gapsCmd)
}

func runGapsList(cmd *cobra.Command, _ []string) error {
	if gapService == nil {
		return errors.New("gap service not configured")
	}

	filter := domain.GapFilter{RuleIDs: gapsRules, Limit: gapsLimit}
	for _, raw := range gapsStatuses {
		status := domain.GapStatus(raw)
		if !status.IsValid() {
			return fmt.Errorf("unknown status %q", raw)
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	for _, raw := range gapsKinds {
		filter.Kinds = append(filter.Kinds, domain.GapKind(raw))
	}

	gaps, err := gapService.List(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("failed to list gaps: %w", err)
	}

	if gapsJSON {
		return outputJSON(cmd, gaps)
	}

	if len(gaps) == 0 {
		cmd.Println("No gaps found.")
		return nil
	}

	cmd.Printf("Found %d gaps:\n\n", len(gaps))
	for i := range gaps {
		g := &gaps[i]
		cmd.Printf("[%d] %s\n", g.Priority, g.ID)
		cmd.Printf("    %s on %s (%s, %s)\n", g.Kind, g.Target, g.Severity, g.Status)
		if g.Description != "" {
			cmd.Printf("    %s\n", g.Description)
		}
		if g.AttemptCount > 0 {
			cmd.Printf("    Attempts: %d\n", g.AttemptCount)
		}
	}
	return nil
}

func runGapsShow(cmd *cobra.Command, args []string) error {
	if gapService == nil {
		return errors.New("gap service not configured")
	}

	details, err := gapService.Get(cmd.Context(), args[0])
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("gap %s not found", args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to get gap: %w", err)
	}

	g := details.Gap
	cmd.Printf("Gap:         %s\n", g.ID)
	cmd.Printf("Rule:        %s\n", g.RuleID)
	cmd.Printf("Kind:        %s\n", g.Kind)
	cmd.Printf("Target:      %s\n", g.Target)
	if details.Node != nil {
		cmd.Printf("Node:        %s\n", details.Node.Name())
	} else {
		cmd.Println("Node:        (removed from graph)")
	}
	cmd.Printf("Status:      %s\n", g.Status)
	cmd.Printf("Severity:    %s (priority %d)\n", g.Severity, g.Priority)
	cmd.Printf("Description: %s\n", g.Description)
	if len(g.SuggestedActions) > 0 {
		actions := make([]string, len(g.SuggestedActions))
		for i, a := range g.SuggestedActions {
			actions[i] = string(a)
		}
		cmd.Printf("Suggested:   %s\n", strings.Join(actions, ", "))
	}
	if g.ResolutionNotes != "" {
		cmd.Println()
		cmd.Println("Notes:")
		for _, line := range strings.Split(g.ResolutionNotes, "\n") {
			cmd.Printf("  %s\n", line)
		}
	}

	cmd.Println()
	if len(details.Attempts) == 0 {
		cmd.Println("No attempts recorded.")
		return nil
	}
	cmd.Println("Attempts:")
	for _, a := range details.Attempts {
		cmd.Printf("  %s  %-20s %-10s %.2f", a.At.Format(time.RFC3339), a.Strategy, a.Outcome, a.Confidence)
		if a.Notes != "" {
			cmd.Printf("  %s", a.Notes)
		}
		cmd.Println()
	}
	return nil
}

func runGapsSummary(cmd *cobra.Command, _ []string) error {
	if gapService == nil {
		return errors.New("gap service not configured")
	}

	summary, err := gapService.Summary(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to summarise gaps: %w", err)
	}

	cmd.Printf("Total:     %d\n", summary.Total)
	cmd.Printf("Open:      %d\n", summary.Open)
	cmd.Printf("Resolved:  %d\n", summary.Resolved)
	cmd.Printf("Failed:    %d\n", summary.Failed)
	cmd.Printf("Escalated: %d\n", summary.Escalated)
	printStatusCounts(cmd, summary.ByStatus)
	return nil
}
