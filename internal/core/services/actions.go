package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/logger"
)

// observation is what one resolution action reports back to the loop.
type observation struct {
	outcome    domain.Outcome
	confidence float64
	notes      string

	// touched lists nodes the action wrote to, for scoped re-evaluation.
	touched []string

	// err is set when the action failed; only invariant violations stop the pass.
	err error
}

func failed(err error) observation {
	return observation{outcome: domain.OutcomeFailed, notes: err.Error(), err: err}
}

// act executes a strategy against its collaborator and writes the result into the graph.
// Collaborator errors become failed observations with zero confidence.
func (o *Orchestrator) act(ctx context.Context, gap *domain.MetadataGap, node *domain.NodeView, strategy domain.Strategy) observation {
	var obs observation
	switch strategy {
	case domain.StrategySemanticLookup:
		obs = o.semanticLookup(ctx, gap, node)
	case domain.StrategyTargetedCodeScan:
		obs = o.targetedCodeScan(ctx, gap, node)
	case domain.StrategyTargetedDocScan:
		obs = o.targetedDocScan(ctx, gap, node)
	default:
		obs = failed(fmt.Errorf("%w: strategy %q", domain.ErrInvalidInput, strategy))
	}
	if obs.err != nil && !errors.Is(obs.err, domain.ErrInvariantViolation) {
		logger.Warn("Gap %s: %s failed: %v", gap.ID, strategy, obs.err)
	}
	return obs
}

func (o *Orchestrator) semanticLookup(ctx context.Context, gap *domain.MetadataGap, node *domain.NodeView) observation {
	if o.semantic == nil {
		return failed(errors.New("semantic store not configured"))
	}

	hits, err := o.semantic.Query(ctx, domain.SemanticQuery{
		Text: semanticQueryText(gap, node),
		TopK: o.settings.SemanticTopK,
	})
	if err != nil {
		return failed(fmt.Errorf("semantic query: %w", err))
	}
	if len(hits) == 0 {
		return observation{outcome: domain.OutcomeNoResult, notes: "no semantic hits"}
	}
	if o.assessor == nil {
		return observation{outcome: domain.OutcomeNoResult, notes: "no assessor configured"}
	}

	a, err := o.assessor.Assess(ctx, gap, node, hits)
	if err != nil {
		return failed(fmt.Errorf("assess: %w", err))
	}
	if a.Value == "" || a.Confidence < o.settings.ConfidenceThreshold {
		return observation{
			outcome:    domain.OutcomeNoResult,
			confidence: a.Confidence,
			notes:      strings.TrimSpace("below threshold " + a.Notes),
		}
	}

	touched, err := o.applyAssessment(ctx, gap, node, a, hits)
	if err != nil {
		return failed(err)
	}
	if len(touched) == 0 {
		return observation{outcome: domain.OutcomeNoResult, confidence: a.Confidence, notes: "nothing to fill"}
	}
	return observation{outcome: domain.OutcomeSuccess, confidence: a.Confidence, notes: a.Notes, touched: touched}
}

// applyAssessment fills the attribute the gap is about and links the evidence documents.
func (o *Orchestrator) applyAssessment(
	ctx context.Context,
	gap *domain.MetadataGap,
	node *domain.NodeView,
	a *domain.Assessment,
	hits []domain.SemanticHit,
) ([]string, error) {
	prov := domain.Provenance{Extractor: string(domain.StrategySemanticLookup), RecordedAt: o.now()}
	evidence := evidenceHits(a, hits)
	if len(evidence) > 0 {
		prov.DocumentID = evidence[0].DocumentID
		prov.ChunkID = evidence[0].ChunkID
	}

	items := &domain.ExtractedItems{}
	switch {
	case node.Entity != nil:
		e := domain.DataEntity{ID: node.Entity.ID, Provenance: []domain.Provenance{prov}}
		switch gap.Kind {
		case domain.GapMissingDescription:
			e.Description = a.Value
		case domain.GapLowConfidence:
			e.Confidence = a.Confidence
		case domain.GapMissingCrossReference:
			target := domain.EntityID(a.Value)
			if _, err := o.graph.Node(ctx, domain.NodeRef{Type: domain.NodeTypeEntity, ID: target}); err != nil || target == e.ID {
				return nil, nil
			}
			items.Relationships = append(items.Relationships, domain.Relationship{
				FromID: e.ID, ToID: target, Type: domain.RelReferences,
				Properties: map[string]any{"source": string(domain.StrategySemanticLookup)},
			})
		default:
			return nil, nil
		}
		items.Entities = append(items.Entities, e)
	case node.Field != nil:
		f := domain.Field{ID: node.Field.ID, EntityID: node.Field.EntityID, Provenance: []domain.Provenance{prov}}
		switch gap.Kind {
		case domain.GapMissingDescription:
			f.Description = a.Value
		case domain.GapMissingDataType:
			f.DataType = a.Value
		case domain.GapLowConfidence:
			f.Confidence = a.Confidence
		default:
			return nil, nil
		}
		items.Fields = append(items.Fields, f)
	default:
		return nil, nil
	}

	for _, h := range evidence {
		if h.DocumentID == "" {
			continue
		}
		items.Relationships = append(items.Relationships, domain.Relationship{
			FromID: node.Ref.ID, ToID: h.DocumentID, Type: domain.RelDescribedBy,
		})
	}

	return o.ingest.ingest(ctx, items, ingestFillMissing)
}

func (o *Orchestrator) targetedCodeScan(ctx context.Context, gap *domain.MetadataGap, node *domain.NodeView) observation {
	scanner, ok := o.scanners[domain.SourceCode]
	if !ok {
		return failed(fmt.Errorf("%w: %s", domain.ErrScannerUnavailable, domain.SourceCode))
	}
	loc, ok := node.CodeLocation()
	if !ok {
		return failed(domain.ErrNoLocation)
	}

	items, err := scanner.ScanTargeted(ctx, domain.Location{Path: loc.SourceFile, Line: loc.Line}, gap.Target)
	if err != nil {
		return failed(fmt.Errorf("targeted code scan of %s: %w", loc.SourceFile, err))
	}
	return o.observeScan(ctx, gap, items, loc.SourceFile)
}

func (o *Orchestrator) targetedDocScan(ctx context.Context, gap *domain.MetadataGap, node *domain.NodeView) observation {
	scanner, ok := o.scanners[domain.SourceDocs]
	if !ok {
		return failed(fmt.Errorf("%w: %s", domain.ErrScannerUnavailable, domain.SourceDocs))
	}
	refs := node.DocumentRefs()
	if len(refs) == 0 {
		return failed(domain.ErrNoLocation)
	}

	merged := &domain.ExtractedItems{}
	var scanned []string
	for _, ref := range refs {
		loc := domain.Location{DocumentID: ref}
		if doc, err := o.graph.Node(ctx, domain.NodeRef{Type: domain.NodeTypeDocument, ID: ref}); err == nil && doc.Document != nil {
			loc.Path = doc.Document.URI
		}
		items, err := scanner.ScanTargeted(ctx, loc, gap.Target)
		if err != nil {
			logger.Warn("Targeted doc scan of %s failed: %v", ref, err)
			continue
		}
		merged.Merge(items)
		scanned = append(scanned, ref)
	}
	if len(scanned) == 0 {
		return failed(fmt.Errorf("targeted doc scan: no linked document could be scanned"))
	}
	return o.observeScan(ctx, gap, merged, strings.Join(scanned, ", "))
}

// observeScan ingests targeted scan output and scores it by the focus node's confidence.
func (o *Orchestrator) observeScan(ctx context.Context, gap *domain.MetadataGap, items *domain.ExtractedItems, where string) observation {
	for _, f := range items.Failures {
		logger.Warn("Targeted scan failure at %s: %s", f.Location, f.Reason)
	}
	if items.IsEmpty() {
		return observation{outcome: domain.OutcomeNoResult, notes: "nothing extracted from " + where}
	}

	touched, err := o.ingest.ingest(ctx, items, ingestFillMissing)
	if err != nil {
		return failed(fmt.Errorf("ingest targeted scan: %w", err))
	}

	confidence, found := items.ConfidenceFor(gap.Target.ID)
	if !found || confidence < o.settings.ConfidenceThreshold {
		return observation{
			outcome:    domain.OutcomeNoResult,
			confidence: confidence,
			notes:      "target not extracted with sufficient confidence from " + where,
			touched:    touched,
		}
	}
	return observation{
		outcome:    domain.OutcomeSuccess,
		confidence: confidence,
		notes:      "extracted from " + where,
		touched:    touched,
	}
}

// semanticQueryText builds the lookup text for a gap from its node.
func semanticQueryText(gap *domain.MetadataGap, node *domain.NodeView) string {
	parts := []string{node.Name()}
	if node.Field != nil {
		if parent := strings.TrimPrefix(node.Field.EntityID, "entity:"); parent != "" {
			parts = append([]string{parent}, parts...)
		}
	}
	switch gap.Kind {
	case domain.GapMissingDataType:
		parts = append(parts, "type")
	case domain.GapMissingCrossReference:
		parts = append(parts, "references")
	}
	return strings.Join(parts, " ")
}

// evidenceHits returns the hits the assessment cites, or the best hit if it cites none.
func evidenceHits(a *domain.Assessment, hits []domain.SemanticHit) []domain.SemanticHit {
	if len(a.Evidence) == 0 {
		if len(hits) == 0 {
			return nil
		}
		return hits[:1]
	}
	var out []domain.SemanticHit
	for _, h := range hits {
		for _, id := range a.Evidence {
			if h.ChunkID == id {
				out = append(out, h)
				break
			}
		}
	}
	return out
}
