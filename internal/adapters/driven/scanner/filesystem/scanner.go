// Package filesystem provides code and documentation scanners that read
// from the local filesystem, plus an fsnotify-based change watcher.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/custodia-labs/mce/internal/core/domain"
)

// Confidence assigned to extracted nodes, by extraction method.
const (
	codeConfidence    = 0.9
	patternConfidence = 0.6
)

// skipDirs are never descended into.
var skipDirs = []string{"vendor", "node_modules", "testdata"}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// transientErrnos are I/O failures that may clear on a later attempt.
var transientErrnos = []syscall.Errno{
	syscall.EAGAIN, syscall.EINTR, syscall.EBUSY, syscall.ETIMEDOUT,
	syscall.EMFILE, syscall.ENFILE,
}

// readFile reads path, wrapping domain.ErrNotFound for missing files and
// domain.ErrTransient for failures worth retrying.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, classifyIO(path, err)
	}
	return data, nil
}

func classifyIO(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	case isTransientIO(err):
		return fmt.Errorf("%w: read %s: %w", domain.ErrTransient, path, err)
	default:
		return fmt.Errorf("read %s: %w", path, err)
	}
}

func isTransientIO(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	for _, errno := range transientErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

// walk calls fn for every accepted file under root, in lexical order.
// A root that is a file is visited directly. Unreadable entries are
// reported through onFailure and skipped.
func walk(ctx context.Context, root string, accept func(string) bool, fn func(path string), onFailure func(path string, err error)) error {
	info, err := os.Stat(root)
	if err != nil {
		return classifyIO(root, err)
	}
	if !info.IsDir() {
		if accept(root) {
			fn(root)
		}
		return nil
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			onFailure(path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		if d.IsDir() {
			if path != root && (isHidden(rel) || slices.Contains(skipDirs, d.Name())) {
				return fs.SkipDir
			}
			return nil
		}
		if isHidden(rel) || !accept(path) {
			return nil
		}
		fn(path)
		return nil
	})
}

// hasExt returns an accept function matching the given extensions.
func hasExt(exts ...string) func(string) bool {
	return func(path string) bool {
		return slices.Contains(exts, strings.ToLower(filepath.Ext(path)))
	}
}

// dedupe merges repeated entities and fields by ID and drops repeated relationships.
func dedupe(items *domain.ExtractedItems) {
	entities := make([]domain.DataEntity, 0, len(items.Entities))
	entityAt := make(map[string]int)
	for _, e := range items.Entities {
		if i, ok := entityAt[e.ID]; ok {
			entities[i].FillMissing(&e)
			continue
		}
		entityAt[e.ID] = len(entities)
		entities = append(entities, e)
	}
	items.Entities = entities

	fields := make([]domain.Field, 0, len(items.Fields))
	fieldAt := make(map[string]int)
	for _, f := range items.Fields {
		if i, ok := fieldAt[f.ID]; ok {
			fields[i].FillMissing(&f)
			continue
		}
		fieldAt[f.ID] = len(fields)
		fields = append(fields, f)
	}
	items.Fields = fields

	seen := make(map[string]struct{})
	rels := items.Relationships[:0]
	for _, r := range items.Relationships {
		if _, ok := seen[r.Key()]; ok {
			continue
		}
		seen[r.Key()] = struct{}{}
		rels = append(rels, r)
	}
	items.Relationships = rels
}

// focusOn narrows items to the focus node and its immediate family:
// an entity keeps its fields, a field keeps its owning entity.
// Documents and chunks are always kept. A zero focus keeps everything.
func focusOn(items *domain.ExtractedItems, focus domain.NodeRef) {
	if focus.ID == "" {
		return
	}

	keep := map[string]bool{focus.ID: true}
	switch focus.Type {
	case domain.NodeTypeEntity:
		for _, f := range items.Fields {
			if f.EntityID == focus.ID {
				keep[f.ID] = true
			}
		}
	case domain.NodeTypeField:
		for _, f := range items.Fields {
			if f.ID == focus.ID {
				keep[f.EntityID] = true
			}
		}
	}

	items.Entities = slices.DeleteFunc(items.Entities, func(e domain.DataEntity) bool { return !keep[e.ID] })
	items.Fields = slices.DeleteFunc(items.Fields, func(f domain.Field) bool { return !keep[f.ID] })
	items.Relationships = slices.DeleteFunc(items.Relationships, func(r domain.Relationship) bool {
		return !keep[r.FromID] && !keep[r.ToID]
	})
}

// resolveReferences adds REFERENCES edges for candidate references whose
// target entity was extracted in the same scan.
func resolveReferences(items *domain.ExtractedItems, refs []reference) {
	known := make(map[string]bool, len(items.Entities))
	for _, e := range items.Entities {
		known[e.ID] = true
	}
	for _, r := range refs {
		to := domain.EntityID(r.toName)
		if to == r.fromID || !known[to] {
			continue
		}
		items.Relationships = append(items.Relationships, domain.Relationship{
			FromID:     r.fromID,
			ToID:       to,
			Type:       domain.RelReferences,
			Properties: map[string]any{"via": r.via},
		})
	}
}

// reference is a possible link from one entity to another by type name.
type reference struct {
	fromID string
	toName string
	via    string
}
