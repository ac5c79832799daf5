package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mce/internal/adapters/driven/config/file"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Shows the configuration after applying config.toml, MCE_ environment
variables and defaults.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if appConfig == nil {
		return errors.New("configuration not loaded")
	}
	cfg := appConfig

	cmd.Println("Effective Configuration")
	cmd.Println("=======================")
	cmd.Println()

	o := cfg.Orchestrator
	cmd.Println("[Orchestrator]")
	cmd.Printf("  Confidence threshold: %.2f\n", o.ConfidenceThreshold)
	cmd.Printf("  Max attempts:         %d\n", o.MaxAttempts)
	cmd.Printf("  Max passes:           %d\n", o.MaxPasses)
	cmd.Printf("  Workers:              %d\n", o.Workers)
	cmd.Printf("  Semantic top-k:       %d\n", o.SemanticTopK)
	cmd.Printf("  Retries:              %d (backoff %s)\n", o.CollaboratorRetries, o.RetryBackoff)
	if o.RateLimit > 0 {
		cmd.Printf("  Rate limit:           %.1f/s\n", o.RateLimit)
	} else {
		cmd.Println("  Rate limit:           off")
	}
	cmd.Println()

	cmd.Println("[LLM]")
	if cfg.LLM.Enabled() {
		cmd.Printf("  Provider: %s\n", cfg.LLM.Provider)
		cmd.Printf("  Model:    %s\n", cfg.LLM.Model)
		cmd.Printf("  Base URL: %s\n", orDefault(cfg.LLM.BaseURL))
		if cfg.LLM.APIKey != "" {
			cmd.Printf("  API key:  %s\n", maskSecret(cfg.LLM.APIKey))
		}
		cmd.Printf("  Cache:    %s\n", cfg.LLM.CacheTTL)
	} else {
		cmd.Println("  Provider: none (heuristic assessment)")
	}
	cmd.Println()

	cmd.Println("[Embedding]")
	if cfg.Embedding.Enabled() {
		cmd.Printf("  Provider: %s\n", cfg.Embedding.Provider)
		cmd.Printf("  Model:    %s\n", cfg.Embedding.Model)
		cmd.Printf("  Base URL: %s\n", orDefault(cfg.Embedding.BaseURL))
		if cfg.Embedding.APIKey != "" {
			cmd.Printf("  API key:  %s\n", maskSecret(cfg.Embedding.APIKey))
		}
	} else {
		cmd.Println("  Provider: none (keyword lookup)")
	}
	cmd.Println()

	cmd.Println("[Scan]")
	cmd.Printf("  Code paths: %s\n", listOrNone(cfg.Scan.CodePaths))
	cmd.Printf("  Doc paths:  %s\n", listOrNone(cfg.Scan.DocPaths))
	cmd.Printf("  Debounce:   %s\n", cfg.Scan.WatchDebounce)
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Data dir:   %s\n", orDefault(cfg.DataDir))
	cmd.Printf("  Rules file: %s\n", orDefault(cfg.RulesFile))
	cmd.Println()

	if err := cfg.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Printf("Fix the values in config.toml or the matching %s* variables.\n", file.EnvPrefix)
	}
	return nil
}

func orDefault(s string) string {
	if s == "" {
		return "(default)"
	}
	return s
}

// maskSecret keeps the last four characters of a key.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}
