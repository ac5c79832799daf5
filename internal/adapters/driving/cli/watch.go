package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driving"
	"github.com/custodia-labs/mce/internal/logger"
)

var watchSkipInitial bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Resolve gaps continuously as sources change",
	Long: `Runs once over all configured sources, then watches them and starts
a new run over the changed files whenever they are modified. Stop with Ctrl-C.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchSkipInitial, "skip-initial", false, "do not run before the first change")
	rootCmd.AddCommand(watchCmd)
}

// change is a modified file reported by a watcher.
type change struct {
	kind domain.SourceKind
	path string
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if orchestrator == nil {
		return errors.New("orchestrator not configured")
	}
	if len(scanSources) == 0 {
		return errors.New("no sources configured to watch")
	}

	ctx := cmd.Context()

	if !watchSkipInitial {
		cmd.Printf("Initial run over %d sources...\n", len(scanSources))
		summary, err := orchestrator.Run(ctx, driving.RunRequest{Sources: scanSources})
		if err != nil {
			return fmt.Errorf("initial run failed: %w", err)
		}
		printRunSummary(cmd, summary)
	}

	changes := make(chan change)
	g, gctx := errgroup.WithContext(ctx)
	watching := 0
	for _, src := range scanSources {
		w, ok := watchers[src.Kind]
		if !ok || w == nil {
			logger.Warn("no watcher for %s source %s", src.Kind, src.Root)
			continue
		}
		events, err := w.Watch(gctx, src.Root)
		if err != nil {
			return fmt.Errorf("watch %s: %w", src.Root, err)
		}
		watching++
		kind := src.Kind
		g.Go(func() error {
			for path := range events {
				select {
				case changes <- change{kind: kind, path: path}:
				case <-gctx.Done():
					return nil
				}
			}
			return nil
		})
	}
	if watching == 0 {
		return errors.New("no watchable sources configured")
	}

	cmd.Printf("Watching %d sources for changes...\n", watching)
	g.Go(func() error {
		return processChanges(gctx, cmd, changes)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	cmd.Println("Stopped watching.")
	return nil
}

// processChanges starts one run per batch of changes until ctx is cancelled.
func processChanges(ctx context.Context, cmd *cobra.Command, changes <-chan change) error {
	for {
		var first change
		select {
		case <-ctx.Done():
			return nil
		case first = <-changes:
		}

		batch := drainChanges(first, changes)
		sources := changedSources(batch)
		cmd.Printf("Detected %d changed files, resolving...\n", len(sources))

		summary, err := orchestrator.Run(ctx, driving.RunRequest{Sources: sources})
		switch {
		case errors.Is(err, context.Canceled):
			return nil
		case errors.Is(err, domain.ErrInvariantViolation):
			return fmt.Errorf("run aborted: %w", err)
		case err != nil:
			logger.Error("run failed: %v", err)
			continue
		}
		printRunSummary(cmd, summary)
	}
}

// drainChanges collects first and every change already queued.
func drainChanges(first change, changes <-chan change) []change {
	batch := []change{first}
	for {
		select {
		case c := <-changes:
			batch = append(batch, c)
		default:
			return batch
		}
	}
}

// changedSources turns changes into distinct scan sources sorted by path.
func changedSources(batch []change) []domain.ScanSource {
	seen := make(map[change]bool, len(batch))
	sources := make([]domain.ScanSource, 0, len(batch))
	for _, c := range batch {
		if seen[c] {
			continue
		}
		seen[c] = true
		sources = append(sources, domain.ScanSource{Kind: c.kind, Root: c.path})
	}
	sort.Slice(sources, func(i, j int) bool {
		if sources[i].Root != sources[j].Root {
			return sources[i].Root < sources[j].Root
		}
		return sources[i].Kind < sources[j].Kind
	})
	return sources
}
