// Package cli provides the cobra command tree for the mce binary.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mce/internal/adapters/driven/config/file"
	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
	"github.com/custodia-labs/mce/internal/core/ports/driving"
	"github.com/custodia-labs/mce/internal/logger"
)

// version is set at build time via SetVersion.
var version = "dev"

// Services injected by main before Execute.
var (
	orchestrator driving.Orchestrator
	gapService   driving.GapService
	appConfig    *file.Config
	scanSources  []domain.ScanSource
	watchers     map[domain.SourceKind]driven.Watcher
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "mce",
	Short: "Gap-driven metadata extraction",
	Long: `mce builds a metadata graph from source code and documentation,
detects what is missing and resolves each gap with the cheapest
strategy that can fill it: semantic lookup, targeted scans, or escalation.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Services bundles the ports the commands drive.
type Services struct {
	Orchestrator driving.Orchestrator
	Gaps         driving.GapService
	Config       *file.Config

	// Sources are scanned by run and watch.
	Sources []domain.ScanSource

	// Watchers report changes per source kind for the watch command.
	Watchers map[domain.SourceKind]driven.Watcher
}

// SetServices injects the services used by all commands.
func SetServices(s Services) {
	orchestrator = s.Orchestrator
	gapService = s.Gaps
	appConfig = s.Config
	scanSources = s.Sources
	watchers = s.Watchers
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
