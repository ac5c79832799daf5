package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/mce/internal/logger"
)

// DefaultDebounce is how long Watch waits for a burst of changes to settle.
const DefaultDebounce = 500 * time.Millisecond

// watch sends the path of every accepted file that changes under root.
// Changes are coalesced until no event arrives for the debounce period,
// then each distinct path is sent once, sorted. The channel is closed when
// ctx is cancelled or the underlying watcher fails.
func watch(ctx context.Context, root string, accept func(string) bool, debounce time.Duration) (<-chan string, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := addTree(fw, root); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", root, err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer fw.Close()

		pending := make(map[string]struct{})
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				path := handleFsEvent(fw, root, ev, accept)
				if path == "" {
					continue
				}
				pending[path] = struct{}{}
				fire = time.After(debounce)
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				logger.Warn("Watcher error on %s: %v", root, err)
			case <-fire:
				fire = nil
				paths := make([]string, 0, len(pending))
				for p := range pending {
					paths = append(paths, p)
				}
				clear(pending)
				slices.Sort(paths)
				for _, p := range paths {
					select {
					case out <- p:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out, nil
}

// handleFsEvent returns the changed path worth reporting, or "".
// New directories are added to the watcher.
func handleFsEvent(fw *fsnotify.Watcher, root string, ev fsnotify.Event, accept func(string) bool) string {
	rel, err := filepath.Rel(root, ev.Name)
	if err != nil || isHidden(rel) {
		return ""
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return ""
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := addTree(fw, ev.Name); err != nil {
				logger.Warn("Watch %s: %v", ev.Name, err)
			}
			return ""
		}
	}
	if !accept(ev.Name) {
		return ""
	}
	return ev.Name
}

// addTree watches root and every visible directory beneath it.
func addTree(fw *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fw.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		if path != root && (isHidden(rel) || slices.Contains(skipDirs, d.Name())) {
			return fs.SkipDir
		}
		return fw.Add(path)
	})
}
