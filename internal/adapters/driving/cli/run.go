package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driving"
	"github.com/custodia-labs/mce/internal/logger"
)

var (
	runFresh       bool
	runID          string
	runNoScan      bool
	runJSON        bool
	runMetricsAddr string
)

// progressInterval is how often run polls the orchestrator status.
var progressInterval = 500 * time.Millisecond

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scan sources and resolve metadata gaps",
	Long: `Scans the configured code and documentation sources, evaluates the
metadata graph for gaps and works each gap until it is resolved, failed or
escalated. A run continues from the attempt history of earlier runs unless
--fresh is given.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runFresh, "fresh", false, "discard attempt history from earlier runs")
	runCmd.Flags().StringVar(&runID, "run-id", "", "name for this run (generated when empty)")
	runCmd.Flags().BoolVar(&runNoScan, "no-scan", false, "skip initial scanning and work on the existing graph")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "output the run summary as JSON")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	if orchestrator == nil {
		return errors.New("orchestrator not configured")
	}

	ctx := cmd.Context()

	if runMetricsAddr != "" {
		stop := serveMetrics(runMetricsAddr)
		defer stop()
		cmd.Printf("Metrics available at http://%s/metrics\n", runMetricsAddr)
	}

	req := driving.RunRequest{RunID: runID, Fresh: runFresh}
	if !runNoScan {
		req.Sources = scanSources
	}

	if !runJSON {
		if len(req.Sources) > 0 {
			cmd.Printf("Scanning %d sources...\n", len(req.Sources))
		} else {
			cmd.Println("Resolving gaps in the existing graph...")
		}
	}

	summary, err := runWithProgress(ctx, cmd, orchestrator, req, !runJSON)
	if err != nil {
		// An aborted run still reports where the ledger stands.
		if summary != nil {
			if jerr := reportSummary(cmd, summary); jerr != nil {
				logger.Warn("%v", jerr)
			}
		}
		return fmt.Errorf("run failed: %w", err)
	}
	return reportSummary(cmd, summary)
}

func reportSummary(cmd *cobra.Command, summary *domain.RunSummary) error {
	if runJSON {
		return outputJSON(cmd, summary)
	}
	printRunSummary(cmd, summary)
	return nil
}

// runWithProgress runs the orchestrator while displaying phase changes.
func runWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	orch driving.Orchestrator,
	req driving.RunRequest,
	showProgress bool,
) (*domain.RunSummary, error) {
	type result struct {
		summary *domain.RunSummary
		err     error
	}
	done := make(chan result, 1)
	go func() {
		summary, err := orch.Run(ctx, req)
		done <- result{summary, err}
	}()

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	var last domain.RunStatus
	for {
		select {
		case r := <-done:
			return r.summary, r.err
		case <-ticker.C:
			if !showProgress {
				continue
			}
			// Best effort; a status error only skips this update.
			status, err := orch.Status(ctx)
			if err != nil || status == nil || !status.Running {
				continue
			}
			if status.Phase != last.Phase || status.Pass != last.Pass {
				cmd.Printf("  %s (pass %d, %d attempts)\n", status.Phase, status.Pass, status.GapsWorked)
				last = *status
			}
		}
	}
}

func printRunSummary(cmd *cobra.Command, s *domain.RunSummary) {
	cmd.Printf("Run %s finished: %s after %d passes (%s)\n",
		s.RunID, s.Reason, s.Passes, s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	cmd.Printf("  Resolved:  %d\n", s.Resolved)
	cmd.Printf("  Failed:    %d\n", s.Failed)
	cmd.Printf("  Escalated: %d\n", s.Escalated)
	if s.Open > 0 {
		cmd.Printf("  Open:      %d\n", s.Open)
	}
	printStatusCounts(cmd, s.ByStatus)
}

func printStatusCounts(cmd *cobra.Command, counts map[domain.GapStatus]int) {
	statuses := make([]domain.GapStatus, 0, len(counts))
	for status, n := range counts {
		if n > 0 {
			statuses = append(statuses, status)
		}
	}
	if len(statuses) == 0 {
		return
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })

	cmd.Println()
	cmd.Println("By status:")
	for _, status := range statuses {
		cmd.Printf("  %-26s %d\n", status, counts[status])
	}
}

func outputJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// serveMetrics exposes the Prometheus registry until the returned stop is called.
func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx) //nolint:errcheck
	}
}
