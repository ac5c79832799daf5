package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
	"github.com/custodia-labs/mce/internal/core/ports/driving"
)

func TestWatchCmd_Use(t *testing.T) {
	assert.Equal(t, "watch", watchCmd.Use)
}

func TestWatchCmd_RequiresSources(t *testing.T) {
	setupServices(t, Services{Orchestrator: &mockOrchestrator{}})

	_, err := execute(t, context.Background(), "watch")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sources configured")
}

func TestWatchCmd_RequiresWatcher(t *testing.T) {
	setupServices(t, Services{
		Orchestrator: &mockOrchestrator{},
		Sources:      []domain.ScanSource{{Kind: domain.SourceDocs, Root: "./docs"}},
	})

	_, err := execute(t, context.Background(), "watch", "--skip-initial")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no watchable sources")
}

func TestWatchCmd_RunsOnChange(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	orch := &mockOrchestrator{}
	orch.onRun = func(n int, _ driving.RunRequest) {
		// Initial run plus one triggered by the change.
		if n == 2 {
			cancel()
		}
	}
	sources := []domain.ScanSource{{Kind: domain.SourceCode, Root: "./internal"}}
	setupServices(t, Services{
		Orchestrator: orch,
		Sources:      sources,
		Watchers: map[domain.SourceKind]driven.Watcher{
			domain.SourceCode: &fakeWatcher{paths: []string{"internal/orders.go"}},
		},
	})

	out, err := execute(t, ctx, "watch")

	require.NoError(t, err)
	reqs := orch.runRequests()
	require.Len(t, reqs, 2)
	assert.Equal(t, sources, reqs[0].Sources)
	assert.Equal(t, []domain.ScanSource{{Kind: domain.SourceCode, Root: "internal/orders.go"}}, reqs[1].Sources)
	assert.Contains(t, out, "Watching 1 sources for changes...")
	assert.Contains(t, out, "Detected 1 changed files")
	assert.Contains(t, out, "Stopped watching.")
}

func TestWatchCmd_InitialRunFailure(t *testing.T) {
	setupServices(t, Services{
		Orchestrator: &mockOrchestrator{runErr: errors.New("graph unavailable")},
		Sources:      []domain.ScanSource{{Kind: domain.SourceCode, Root: "."}},
	})

	_, err := execute(t, context.Background(), "watch")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "initial run failed")
}

func TestProcessChanges_InvariantViolationStops(t *testing.T) {
	orch := &mockOrchestrator{runErr: domain.ErrInvariantViolation}
	setupServices(t, Services{Orchestrator: orch})

	changes := make(chan change, 1)
	changes <- change{kind: domain.SourceDocs, path: "docs/a.md"}

	err := processChanges(context.Background(), watchCmd, changes)

	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
}

func TestDrainChanges(t *testing.T) {
	changes := make(chan change, 3)
	changes <- change{kind: domain.SourceCode, path: "b.go"}
	changes <- change{kind: domain.SourceDocs, path: "a.md"}

	batch := drainChanges(change{kind: domain.SourceCode, path: "c.go"}, changes)

	assert.Len(t, batch, 3)
	assert.Empty(t, changes)
}

func TestChangedSources(t *testing.T) {
	batch := []change{
		{kind: domain.SourceCode, path: "b.go"},
		{kind: domain.SourceDocs, path: "a.md"},
		{kind: domain.SourceCode, path: "b.go"},
	}

	got := changedSources(batch)

	assert.Equal(t, []domain.ScanSource{
		{Kind: domain.SourceDocs, Root: "a.md"},
		{Kind: domain.SourceCode, Root: "b.go"},
	}, got)
}
