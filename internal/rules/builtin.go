package rules

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
)

// Built-in rule IDs.
const (
	EntityMissingDescription    = "entity-missing-description"
	FieldMissingDataType        = "field-missing-data-type"
	FieldMissingDescription     = "field-missing-description"
	EntityWithoutFields         = "entity-without-fields"
	EntityLowConfidence         = "entity-low-confidence"
	EntityMissingCrossReference = "entity-missing-cross-reference"
)

// DefaultLowConfidenceThreshold is the confidence below which an entity is flagged.
const DefaultLowConfidenceThreshold = 0.5

var allStrategies = []domain.Strategy{
	domain.StrategySemanticLookup,
	domain.StrategyTargetedCodeScan,
	domain.StrategyTargetedDocScan,
}

// predicateRule is a rule that selects every node of its target type and
// applies a predicate to each.
type predicateRule struct {
	def    domain.RuleDefinition
	check  func(node *domain.NodeView) (bool, string)
	filter func(ctx context.Context, graph driven.GraphView, nodes []domain.NodeView) ([]domain.NodeView, error)
}

func (r *predicateRule) Definition() domain.RuleDefinition {
	def := r.def
	def.Suggested = slices.Clone(r.def.Suggested)
	return def
}

func (r *predicateRule) Select(ctx context.Context, graph driven.GraphView, scope domain.Scope) ([]domain.NodeView, error) {
	nodes, err := SelectNodes(ctx, graph, scope, r.def.TargetType)
	if err != nil {
		return nil, err
	}
	if r.filter != nil {
		return r.filter(ctx, graph, nodes)
	}
	return nodes, nil
}

func (r *predicateRule) Check(node *domain.NodeView) (bool, string) {
	return r.check(node)
}

// SelectNodes returns views of every node of type t within scope, ordered by ID.
func SelectNodes(ctx context.Context, graph driven.GraphView, scope domain.Scope, t domain.NodeType) ([]domain.NodeView, error) {
	var ids []string
	if scope.IsAll() {
		switch t {
		case domain.NodeTypeEntity:
			entities, err := graph.Entities(ctx)
			if err != nil {
				return nil, fmt.Errorf("list entities: %w", err)
			}
			for i := range entities {
				ids = append(ids, entities[i].ID)
			}
		case domain.NodeTypeField:
			fields, err := graph.Fields(ctx)
			if err != nil {
				return nil, fmt.Errorf("list fields: %w", err)
			}
			for i := range fields {
				ids = append(ids, fields[i].ID)
			}
		case domain.NodeTypeDocument:
			docs, err := graph.Documents(ctx)
			if err != nil {
				return nil, fmt.Errorf("list documents: %w", err)
			}
			for i := range docs {
				ids = append(ids, docs[i].ID)
			}
		default:
			return nil, fmt.Errorf("%w: cannot select %s nodes", domain.ErrInvalidInput, t)
		}
	} else {
		ids = slices.Clone(scope.NodeIDs)
		slices.Sort(ids)
	}

	views := make([]domain.NodeView, 0, len(ids))
	for _, id := range ids {
		if !strings.HasPrefix(id, string(t)+":") {
			continue
		}
		view, err := graph.Node(ctx, domain.NodeRef{Type: t, ID: id})
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", id, err)
		}
		views = append(views, *view)
	}
	return views, nil
}

func newEntityMissingDescription(_ map[string]any) (driven.GapRule, error) {
	return &predicateRule{
		def: domain.RuleDefinition{
			ID:          EntityMissingDescription,
			Kind:        domain.GapMissingDescription,
			TargetType:  domain.NodeTypeEntity,
			Severity:    domain.SeverityMedium,
			Priority:    2,
			Suggested:   allStrategies,
			Description: "Every entity has a description.",
		},
		check: func(node *domain.NodeView) (bool, string) {
			if strings.TrimSpace(node.Entity.Description) != "" {
				return false, ""
			}
			return true, fmt.Sprintf("Entity %s has no description", node.Name())
		},
	}, nil
}

func newFieldMissingDataType(_ map[string]any) (driven.GapRule, error) {
	return &predicateRule{
		def: domain.RuleDefinition{
			ID:          FieldMissingDataType,
			Kind:        domain.GapMissingDataType,
			TargetType:  domain.NodeTypeField,
			Severity:    domain.SeverityHigh,
			Priority:    2,
			Suggested:   allStrategies,
			Description: "Every field has a data type.",
		},
		check: func(node *domain.NodeView) (bool, string) {
			if strings.TrimSpace(node.Field.DataType) != "" {
				return false, ""
			}
			return true, fmt.Sprintf("Field %s of %s has no data type", node.Name(), entityName(node.Field.EntityID))
		},
	}, nil
}

func newFieldMissingDescription(_ map[string]any) (driven.GapRule, error) {
	return &predicateRule{
		def: domain.RuleDefinition{
			ID:          FieldMissingDescription,
			Kind:        domain.GapMissingDescription,
			TargetType:  domain.NodeTypeField,
			Severity:    domain.SeverityLow,
			Priority:    3,
			Suggested:   allStrategies,
			Description: "Every field has a description.",
		},
		check: func(node *domain.NodeView) (bool, string) {
			if strings.TrimSpace(node.Field.Description) != "" {
				return false, ""
			}
			return true, fmt.Sprintf("Field %s of %s has no description", node.Name(), entityName(node.Field.EntityID))
		},
	}, nil
}

func newEntityWithoutFields(_ map[string]any) (driven.GapRule, error) {
	return &predicateRule{
		def: domain.RuleDefinition{
			ID:          EntityWithoutFields,
			Kind:        domain.GapMissingFields,
			TargetType:  domain.NodeTypeEntity,
			Severity:    domain.SeverityMedium,
			Priority:    4,
			Suggested:   []domain.Strategy{domain.StrategyTargetedCodeScan, domain.StrategyTargetedDocScan},
			Description: "Every entity has at least one field.",
		},
		check: func(node *domain.NodeView) (bool, string) {
			if node.CountOutgoing(domain.RelHasField) > 0 {
				return false, ""
			}
			return true, fmt.Sprintf("Entity %s has no fields", node.Name())
		},
	}, nil
}

func newEntityLowConfidence(params map[string]any) (driven.GapRule, error) {
	threshold := DefaultLowConfidenceThreshold
	if v, ok := params["threshold"]; ok {
		t, ok := toFloat(v)
		if !ok || t < 0 || t > 1 {
			return nil, fmt.Errorf("%w: %s threshold must be a number in [0,1], got %v",
				domain.ErrInvalidInput, EntityLowConfidence, v)
		}
		threshold = t
	}

	return &predicateRule{
		def: domain.RuleDefinition{
			ID:          EntityLowConfidence,
			Kind:        domain.GapLowConfidence,
			TargetType:  domain.NodeTypeEntity,
			Severity:    domain.SeverityLow,
			Priority:    4,
			Suggested:   []domain.Strategy{domain.StrategyTargetedCodeScan, domain.StrategySemanticLookup},
			Description: fmt.Sprintf("Every entity was extracted with confidence of at least %.2f.", threshold),
		},
		check: func(node *domain.NodeView) (bool, string) {
			if node.Entity.Confidence >= threshold {
				return false, ""
			}
			return true, fmt.Sprintf("Entity %s has confidence %.2f, below %.2f",
				node.Name(), node.Entity.Confidence, threshold)
		},
	}, nil
}

func newEntityMissingCrossReference(_ map[string]any) (driven.GapRule, error) {
	return &predicateRule{
		def: domain.RuleDefinition{
			ID:          EntityMissingCrossReference,
			Kind:        domain.GapMissingCrossReference,
			TargetType:  domain.NodeTypeEntity,
			Severity:    domain.SeverityLow,
			Priority:    5,
			Suggested:   []domain.Strategy{domain.StrategySemanticLookup, domain.StrategyTargetedDocScan},
			Description: "Entities link to the entities their key fields refer to.",
		},
		filter: existingReferences,
		check: func(node *domain.NodeView) (bool, string) {
			missing := missingReferences(node)
			if len(missing) == 0 {
				return false, ""
			}
			return true, fmt.Sprintf("Entity %s refers to %s without a REFERENCES link",
				node.Name(), strings.Join(missing, ", "))
		},
	}, nil
}

// existingReferences keeps entities with a reference field that points at an
// existing entity they do not link to yet.
func existingReferences(ctx context.Context, graph driven.GraphView, nodes []domain.NodeView) ([]domain.NodeView, error) {
	entities, err := graph.Entities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	known := make(map[string]struct{}, len(entities))
	for i := range entities {
		known[entities[i].ID] = struct{}{}
	}

	var out []domain.NodeView
	for i := range nodes {
		for _, name := range missingReferences(&nodes[i]) {
			if _, ok := known[domain.EntityID(name)]; ok {
				out = append(out, nodes[i])
				break
			}
		}
	}
	return out, nil
}

// referencedEntities derives entity IDs from fields named like "<entity>_id".
func referencedEntities(node *domain.NodeView) []string {
	var out []string
	for _, r := range node.Outgoing {
		if r.Type != domain.RelHasField {
			continue
		}
		name := r.ToID[strings.LastIndex(r.ToID, ".")+1:]
		base, ok := strings.CutSuffix(name, "_id")
		if !ok || base == "" {
			continue
		}
		id := domain.EntityID(base)
		if id != node.Ref.ID && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

func missingReferences(node *domain.NodeView) []string {
	var missing []string
	for _, id := range referencedEntities(node) {
		linked := slices.ContainsFunc(node.Outgoing, func(r domain.Relationship) bool {
			return r.Type == domain.RelReferences && r.ToID == id
		})
		if !linked {
			missing = append(missing, entityName(id))
		}
	}
	return missing
}

func entityName(id string) string {
	return strings.TrimPrefix(id, "entity:")
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
