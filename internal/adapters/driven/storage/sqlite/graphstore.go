package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
)

// graphStore implements driven.GraphStore.
type graphStore struct {
	store *Store
}

var _ driven.GraphStore = (*graphStore)(nil)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// ==================== Entities ====================

const entityColumns = `id, name, kind, description, confidence, provenance, properties, created_at, updated_at`

// UpsertEntity stores or replaces an entity.
func (s *graphStore) UpsertEntity(ctx context.Context, e *domain.DataEntity) error {
	if e.ID == "" {
		return fmt.Errorf("%w: entity id is required", domain.ErrInvalidInput)
	}
	provJSON, err := marshalJSON(e.Provenance)
	if err != nil {
		return fmt.Errorf("marshalling provenance: %w", err)
	}
	propsJSON, err := marshalJSON(e.Properties)
	if err != nil {
		return fmt.Errorf("marshalling properties: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO entities (`+entityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			description = excluded.description,
			confidence = excluded.confidence,
			provenance = excluded.provenance,
			properties = excluded.properties,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, e.ID, e.Name, e.Kind, e.Description, e.Confidence, provJSON, propsJSON,
		nullTime(e.CreatedAt), nullTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving entity: %w", err)
	}
	return nil
}

// Entities returns every entity, ordered by ID.
func (s *graphStore) Entities(ctx context.Context) ([]domain.DataEntity, error) {
	rows, err := s.store.db.QueryContext(ctx, `SELECT `+entityColumns+` FROM entities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var entities []domain.DataEntity //nolint:prealloc // size unknown from query
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}
	return entities, nil
}

func scanEntity(row rowScanner) (*domain.DataEntity, error) {
	var e domain.DataEntity
	var provJSON, propsJSON string
	var createdAt, updatedAt sql.NullTime
	if err := row.Scan(&e.ID, &e.Name, &e.Kind, &e.Description, &e.Confidence,
		&provJSON, &propsJSON, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning entity: %w", err)
	}
	if err := unmarshalJSON(provJSON, &e.Provenance); err != nil {
		return nil, fmt.Errorf("unmarshalling provenance: %w", err)
	}
	if err := unmarshalJSON(propsJSON, &e.Properties); err != nil {
		return nil, fmt.Errorf("unmarshalling properties: %w", err)
	}
	e.CreatedAt, e.UpdatedAt = createdAt.Time, updatedAt.Time
	return &e, nil
}

// ==================== Fields ====================

const fieldColumns = `id, entity_id, name, data_type, description, confidence, provenance, properties, created_at, updated_at`

// UpsertField stores or replaces a field.
func (s *graphStore) UpsertField(ctx context.Context, f *domain.Field) error {
	if f.ID == "" {
		return fmt.Errorf("%w: field id is required", domain.ErrInvalidInput)
	}
	provJSON, err := marshalJSON(f.Provenance)
	if err != nil {
		return fmt.Errorf("marshalling provenance: %w", err)
	}
	propsJSON, err := marshalJSON(f.Properties)
	if err != nil {
		return fmt.Errorf("marshalling properties: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO fields (`+fieldColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			entity_id = excluded.entity_id,
			name = excluded.name,
			data_type = excluded.data_type,
			description = excluded.description,
			confidence = excluded.confidence,
			provenance = excluded.provenance,
			properties = excluded.properties,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, f.ID, f.EntityID, f.Name, f.DataType, f.Description, f.Confidence, provJSON, propsJSON,
		nullTime(f.CreatedAt), nullTime(f.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving field: %w", err)
	}
	return nil
}

// Fields returns every field, ordered by ID.
func (s *graphStore) Fields(ctx context.Context) ([]domain.Field, error) {
	rows, err := s.store.db.QueryContext(ctx, `SELECT `+fieldColumns+` FROM fields ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying fields: %w", err)
	}
	defer rows.Close()

	var fields []domain.Field //nolint:prealloc // size unknown from query
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, err
		}
		fields = append(fields, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fields: %w", err)
	}
	return fields, nil
}

func scanField(row rowScanner) (*domain.Field, error) {
	var f domain.Field
	var provJSON, propsJSON string
	var createdAt, updatedAt sql.NullTime
	if err := row.Scan(&f.ID, &f.EntityID, &f.Name, &f.DataType, &f.Description, &f.Confidence,
		&provJSON, &propsJSON, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning field: %w", err)
	}
	if err := unmarshalJSON(provJSON, &f.Provenance); err != nil {
		return nil, fmt.Errorf("unmarshalling provenance: %w", err)
	}
	if err := unmarshalJSON(propsJSON, &f.Properties); err != nil {
		return nil, fmt.Errorf("unmarshalling properties: %w", err)
	}
	f.CreatedAt, f.UpdatedAt = createdAt.Time, updatedAt.Time
	return &f, nil
}

// ==================== Documents and Chunks ====================

const documentColumns = `id, uri, title, content, metadata, created_at, updated_at`

// UpsertDocument stores or replaces a document.
func (s *graphStore) UpsertDocument(ctx context.Context, doc *domain.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}
	metadataJSON, err := marshalJSON(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			uri = excluded.uri,
			title = excluded.title,
			content = excluded.content,
			metadata = excluded.metadata,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, doc.ID, doc.URI, doc.Title, doc.Content, metadataJSON,
		nullTime(doc.CreatedAt), nullTime(doc.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// Documents returns every document, ordered by ID.
func (s *graphStore) Documents(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var metadataJSON string
	var createdAt, updatedAt sql.NullTime
	if err := row.Scan(&doc.ID, &doc.URI, &doc.Title, &doc.Content, &metadataJSON,
		&createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	if err := unmarshalJSON(metadataJSON, &doc.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata: %w", err)
	}
	doc.CreatedAt, doc.UpdatedAt = createdAt.Time, updatedAt.Time
	return &doc, nil
}

const chunkColumns = `id, document_id, content, position, version, summary, embedding_ref, embedding, metadata`

// SaveChunks stores chunks. Existing chunk IDs are left untouched.
func (s *graphStore) SaveChunks(ctx context.Context, chunks []domain.Chunk) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (`+chunkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		metadataJSON, err := marshalJSON(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling chunk metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.DocumentID, chunk.Content,
			chunk.Position, chunk.Version, chunk.Summary, chunk.EmbeddingRef,
			float32SliceToBytes(chunk.Embedding), metadataJSON); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetChunks retrieves all chunks for a document, ordered by position and version.
func (s *graphStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+chunkColumns+`
		FROM chunks WHERE document_id = ?
		ORDER BY position, version
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

func scanChunks(rows *sql.Rows) ([]domain.Chunk, error) {
	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var c domain.Chunk
		var embedding []byte
		var metadataJSON string
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Content, &c.Position, &c.Version,
			&c.Summary, &c.EmbeddingRef, &embedding, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.Embedding = bytesToFloat32Slice(embedding)
		if err := unmarshalJSON(metadataJSON, &c.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling chunk metadata: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// ==================== Relationships ====================

// UpsertRelationship stores a relationship; the same triple is stored once.
func (s *graphStore) UpsertRelationship(ctx context.Context, rel domain.Relationship) error {
	if rel.FromID == "" || rel.ToID == "" || rel.Type == "" {
		return fmt.Errorf("%w: relationship needs from, type and to", domain.ErrInvalidInput)
	}
	propsJSON, err := marshalJSON(rel.Properties)
	if err != nil {
		return fmt.Errorf("marshalling properties: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO relationships (from_id, type, to_id, properties)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(from_id, type, to_id) DO UPDATE SET
			properties = excluded.properties
	`, rel.FromID, rel.Type, rel.ToID, propsJSON)
	if err != nil {
		return fmt.Errorf("saving relationship: %w", err)
	}
	return nil
}

// Relationships returns relationships touching the node, in either direction.
func (s *graphStore) Relationships(ctx context.Context, nodeID string) ([]domain.Relationship, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT from_id, type, to_id, properties
		FROM relationships WHERE from_id = ? OR to_id = ?
		ORDER BY from_id, type, to_id
	`, nodeID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("querying relationships: %w", err)
	}
	defer rows.Close()

	var rels []domain.Relationship //nolint:prealloc // size unknown from query
	for rows.Next() {
		var r domain.Relationship
		var propsJSON string
		if err := rows.Scan(&r.FromID, &r.Type, &r.ToID, &propsJSON); err != nil {
			return nil, fmt.Errorf("scanning relationship: %w", err)
		}
		if err := unmarshalJSON(propsJSON, &r.Properties); err != nil {
			return nil, fmt.Errorf("unmarshalling properties: %w", err)
		}
		rels = append(rels, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating relationships: %w", err)
	}
	return rels, nil
}

// Node returns a snapshot of the node and its immediate relationships.
func (s *graphStore) Node(ctx context.Context, ref domain.NodeRef) (*domain.NodeView, error) {
	view := &domain.NodeView{Ref: ref}
	switch ref.Type {
	case domain.NodeTypeEntity:
		e, err := scanEntity(s.store.db.QueryRowContext(ctx,
			`SELECT `+entityColumns+` FROM entities WHERE id = ?`, ref.ID))
		if err != nil {
			return nil, err
		}
		view.Entity = e
	case domain.NodeTypeField:
		f, err := scanField(s.store.db.QueryRowContext(ctx,
			`SELECT `+fieldColumns+` FROM fields WHERE id = ?`, ref.ID))
		if err != nil {
			return nil, err
		}
		view.Field = f
	case domain.NodeTypeDocument:
		doc, err := scanDocument(s.store.db.QueryRowContext(ctx,
			`SELECT `+documentColumns+` FROM documents WHERE id = ?`, ref.ID))
		if err != nil {
			return nil, err
		}
		view.Document = doc
	default:
		return nil, domain.ErrNotFound
	}

	rels, err := s.Relationships(ctx, ref.ID)
	if err != nil {
		return nil, err
	}
	for _, r := range rels {
		if r.FromID == ref.ID {
			view.Outgoing = append(view.Outgoing, r)
		}
		if r.ToID == ref.ID {
			view.Incoming = append(view.Incoming, r)
		}
	}
	return view, nil
}

// ==================== Gap Ledger ====================

const gapColumns = `id, rule_id, kind, target_type, target_id, description, severity, priority, status,
	attempt_count, last_attempt_at, created_at, updated_at, resolution_notes, suggested_actions`

// UpsertGap validates and stores a gap, returning the stored copy.
func (s *graphStore) UpsertGap(ctx context.Context, gap *domain.MetadataGap) (*domain.MetadataGap, error) {
	if err := gap.Validate(); err != nil {
		return nil, err
	}
	actionsJSON, err := marshalJSON(gap.SuggestedActions)
	if err != nil {
		return nil, fmt.Errorf("marshalling suggested actions: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO gaps (`+gapColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			description = excluded.description,
			severity = excluded.severity,
			priority = excluded.priority,
			status = excluded.status,
			attempt_count = excluded.attempt_count,
			last_attempt_at = excluded.last_attempt_at,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			resolution_notes = excluded.resolution_notes,
			suggested_actions = excluded.suggested_actions
	`, gap.ID, gap.RuleID, gap.Kind, gap.Target.Type, gap.Target.ID, gap.Description,
		gap.Severity, gap.Priority, gap.Status, gap.AttemptCount, nullTime(gap.LastAttemptAt),
		nullTime(gap.CreatedAt), nullTime(gap.UpdatedAt), gap.ResolutionNotes, actionsJSON)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("%w: gap %s: %w", domain.ErrInvariantViolation, gap.ID, err)
		}
		return nil, fmt.Errorf("saving gap: %w", err)
	}
	return s.GetGap(ctx, gap.ID)
}

// GetGap retrieves a gap by ID.
func (s *graphStore) GetGap(ctx context.Context, id string) (*domain.MetadataGap, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+gapColumns+` FROM gaps WHERE id = ?`, id)
	return scanGap(row)
}

// ListGaps returns gaps matching the filter, ordered by ID.
func (s *graphStore) ListGaps(ctx context.Context, filter domain.GapFilter) ([]domain.MetadataGap, error) {
	var (
		where []string
		args  []any
	)
	in := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		where = append(where, column+" IN ("+strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")+")")
		for _, v := range values {
			args = append(args, v)
		}
	}
	in("status", statusStrings(filter.Statuses))
	in("kind", kindStrings(filter.Kinds))
	in("rule_id", filter.RuleIDs)
	in("target_id", filter.TargetIDs)

	query := `SELECT ` + gapColumns + ` FROM gaps`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying gaps: %w", err)
	}
	defer rows.Close()

	var gaps []domain.MetadataGap //nolint:prealloc // size unknown from query
	for rows.Next() {
		gap, err := scanGap(rows)
		if err != nil {
			return nil, err
		}
		gaps = append(gaps, *gap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating gaps: %w", err)
	}
	return gaps, nil
}

func scanGap(row rowScanner) (*domain.MetadataGap, error) {
	var g domain.MetadataGap
	var actionsJSON string
	var lastAttempt, createdAt, updatedAt sql.NullTime
	if err := row.Scan(&g.ID, &g.RuleID, &g.Kind, &g.Target.Type, &g.Target.ID, &g.Description,
		&g.Severity, &g.Priority, &g.Status, &g.AttemptCount, &lastAttempt,
		&createdAt, &updatedAt, &g.ResolutionNotes, &actionsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning gap: %w", err)
	}
	if err := unmarshalJSON(actionsJSON, &g.SuggestedActions); err != nil {
		return nil, fmt.Errorf("unmarshalling suggested actions: %w", err)
	}
	g.LastAttemptAt, g.CreatedAt, g.UpdatedAt = lastAttempt.Time, createdAt.Time, updatedAt.Time
	return &g, nil
}

func statusStrings(statuses []domain.GapStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func kindStrings(kinds []domain.GapKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

// Close is a no-op; the owning Store closes the database.
func (s *graphStore) Close() error {
	return nil
}
