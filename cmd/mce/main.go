// Command mce runs the gap-driven metadata extraction engine.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/custodia-labs/mce/internal/adapters/driven/ai"
	"github.com/custodia-labs/mce/internal/adapters/driven/config/file"
	"github.com/custodia-labs/mce/internal/adapters/driven/llm/assessor"
	"github.com/custodia-labs/mce/internal/adapters/driven/resilience"
	"github.com/custodia-labs/mce/internal/adapters/driven/scanner/filesystem"
	"github.com/custodia-labs/mce/internal/adapters/driven/storage/badgerstore"
	"github.com/custodia-labs/mce/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/mce/internal/adapters/driving/cli"
	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
	"github.com/custodia-labs/mce/internal/core/services"
	"github.com/custodia-labs/mce/internal/logger"
	"github.com/custodia-labs/mce/internal/postprocessors"
	"github.com/custodia-labs/mce/internal/rules"
)

// version is set via -ldflags "-X main.version=...".
var version = "dev"

// configDirEnv overrides the directory holding config.toml and prompts/.
const configDirEnv = "MCE_HOME"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) (err error) {
	configDir := os.Getenv(configDirEnv)

	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return report(fmt.Errorf("open config: %w", err))
	}
	cfg, err := file.LoadConfig(store)
	if err != nil {
		return report(err)
	}

	promptDir := ""
	if configDir != "" {
		promptDir = filepath.Join(configDir, "prompts")
	}
	prompts, err := file.NewPromptStore(promptDir)
	if err != nil {
		return report(fmt.Errorf("open prompts: %w", err))
	}

	settings := cfg.Orchestrator.Settings()
	policy := resilience.PolicyFromSettings(settings, cfg.Orchestrator.RateLimit)

	models := ai.Init(ctx, cfg, prompts, policy)
	defer func() { err = errors.Join(err, models.Close()) }()

	graphDB, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return report(fmt.Errorf("open graph store: %w", err))
	}
	defer func() { err = errors.Join(err, graphDB.Close()) }()

	stateDir := ""
	if cfg.DataDir != "" {
		stateDir = filepath.Join(cfg.DataDir, "state")
	}
	states, err := badgerstore.NewStateStore(stateDir)
	if err != nil {
		return report(fmt.Errorf("open state store: %w", err))
	}
	defer func() { err = errors.Join(err, states.Close()) }()

	registry, err := loadRules(cfg.RulesFile)
	if err != nil {
		return report(err)
	}

	graph := graphDB.GraphStore()
	semantic := resilience.SemanticStore(graphDB.SemanticStore(models.EmbeddingService), policy)
	judge := resilience.Assessor(assessor.New(models.LLMService, prompts), policy)

	docOpts := []filesystem.DocOption{
		filesystem.WithPipeline(postprocessors.DefaultPipeline(models.LLMService)),
		filesystem.WithDocDebounce(cfg.Scan.WatchDebounce),
	}
	if models.LLMService != nil {
		extractor, err := assessor.NewExtractor(models.LLMService, prompts)
		if err != nil {
			return report(err)
		}
		docOpts = append(docOpts, filesystem.WithExtractor(extractor))
	}

	scanners := []driven.Scanner{
		resilience.Scanner(filesystem.NewCodeScanner(filesystem.WithCodeDebounce(cfg.Scan.WatchDebounce)), policy),
		resilience.Scanner(filesystem.NewDocScanner(docOpts...), policy),
	}
	watchers := make(map[domain.SourceKind]driven.Watcher, len(scanners))
	for _, s := range scanners {
		if w, ok := s.(driven.Watcher); ok {
			watchers[s.Kind()] = w
		}
	}

	evaluator := services.NewCompletenessEvaluator(graph, services.NewRuleEngine(registry))
	orchestrator := services.NewOrchestrator(graph, semantic, evaluator, scanners, judge, states, settings)

	logger.Debug("graph store at %s", graphDB.Path())

	cli.SetVersion(version)
	cli.SetServices(cli.Services{
		Orchestrator: orchestrator,
		Gaps:         services.NewGapService(graph, evaluator, states),
		Config:       cfg,
		Sources:      scanSources(cfg.Scan),
		Watchers:     watchers,
	})

	return cli.Execute(ctx)
}

func loadRules(path string) (*rules.Registry, error) {
	var overrides *rules.Overrides
	if path != "" {
		o, err := rules.LoadOverrides(path)
		if err != nil {
			return nil, err
		}
		overrides = o
	}
	registry, err := rules.NewDefaultRegistry(overrides)
	if err != nil {
		return nil, fmt.Errorf("build rules: %w", err)
	}
	return registry, nil
}

func scanSources(cfg file.ScanConfig) []domain.ScanSource {
	sources := make([]domain.ScanSource, 0, len(cfg.CodePaths)+len(cfg.DocPaths))
	for _, p := range cfg.CodePaths {
		sources = append(sources, domain.ScanSource{Kind: domain.SourceCode, Root: p})
	}
	for _, p := range cfg.DocPaths {
		sources = append(sources, domain.ScanSource{Kind: domain.SourceDocs, Root: p})
	}
	return sources
}

// report prints a setup error; errors from commands are printed by cobra.
func report(err error) error {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return err
}
