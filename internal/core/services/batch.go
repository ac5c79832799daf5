package services

import "github.com/custodia-labs/mce/internal/core/domain"

// gapWork is a gap paired with a snapshot of its target node.
type gapWork struct {
	gap  domain.MetadataGap
	node *domain.NodeView
}

// partition splits ranked work into batches whose footprints do not overlap.
// Each item goes into the earliest batch it does not conflict with, so two gaps
// touching the same node keep their ranked order across batches.
func partition(work []gapWork) [][]gapWork {
	var (
		batches [][]gapWork
		claimed []map[string]struct{}
	)

	for _, w := range work {
		footprint := w.node.Footprint()

		// A gap must run after every earlier gap it conflicts with.
		earliest := 0
		for b := len(batches) - 1; b >= 0; b-- {
			if overlaps(claimed[b], footprint) {
				earliest = b + 1
				break
			}
		}

		if earliest == len(batches) {
			batches = append(batches, nil)
			claimed = append(claimed, make(map[string]struct{}))
		}
		batches[earliest] = append(batches[earliest], w)
		for _, id := range footprint {
			claimed[earliest][id] = struct{}{}
		}
	}
	return batches
}

func overlaps(claimed map[string]struct{}, ids []string) bool {
	for _, id := range ids {
		if _, ok := claimed[id]; ok {
			return true
		}
	}
	return false
}
