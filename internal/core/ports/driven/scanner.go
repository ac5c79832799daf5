package driven

import (
	"context"

	"github.com/custodia-labs/mce/internal/core/domain"
)

// Scanner extracts graph nodes from a code or documentation source.
// Scans report partial failure through ExtractedItems.Failures;
// an error return means the scan could not run at all.
type Scanner interface {
	// Kind returns the source kind this scanner handles.
	Kind() domain.SourceKind

	// ScanBroad extracts everything found under the source root.
	ScanBroad(ctx context.Context, src domain.ScanSource) (*domain.ExtractedItems, error)

	// ScanTargeted re-extracts a single location, focusing on the named node.
	// Returns domain.ErrNoLocation if the location is empty.
	ScanTargeted(ctx context.Context, loc domain.Location, focus domain.NodeRef) (*domain.ExtractedItems, error)
}

// Watcher is implemented by scanners that can report source changes.
type Watcher interface {
	// Watch sends the path of every changed file until ctx is cancelled.
	Watch(ctx context.Context, root string) (<-chan string, error)
}
