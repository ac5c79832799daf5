package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/mce/internal/adapters/driven/storage/rank"
	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
	"github.com/custodia-labs/mce/internal/logger"
)

// semanticStore implements driven.SemanticStore over the chunks table,
// so the index survives between runs of the CLI.
type semanticStore struct {
	store    *Store
	embedder driven.EmbeddingService
}

var _ driven.SemanticStore = (*semanticStore)(nil)

// Index adds chunks to the store. Chunks already indexed are skipped.
// A stored chunk without a vector is embedded when an embedder is configured.
func (s *semanticStore) Index(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	embedded, err := s.embeddedIDs(ctx, chunks)
	if err != nil {
		return err
	}

	var pending []domain.Chunk
	for _, c := range chunks {
		if _, ok := embedded[c.ID]; !ok {
			pending = append(pending, c)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	if s.embedder != nil {
		var texts []string
		var idx []int
		for i := range pending {
			if len(pending[i].Embedding) == 0 {
				texts = append(texts, pending[i].Content)
				idx = append(idx, i)
			}
		}
		if len(texts) > 0 {
			vectors, err := s.embedder.EmbedBatch(ctx, texts)
			if err != nil {
				return fmt.Errorf("embed chunks: %w", err)
			}
			for j, i := range idx {
				if j < len(vectors) {
					pending[i].Embedding = vectors[j]
				}
			}
		}
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return dbError("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (`+chunkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			embedding = excluded.embedding
		WHERE chunks.embedding IS NULL OR length(chunks.embedding) = 0
	`)
	if err != nil {
		return dbError("preparing statement", err)
	}
	defer stmt.Close()

	for _, c := range pending {
		metadataJSON, err := marshalJSON(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling chunk metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.Content, c.Position, c.Version,
			c.Summary, c.EmbeddingRef, float32SliceToBytes(c.Embedding), metadataJSON); err != nil {
			return dbError("indexing chunk", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return dbError("committing transaction", err)
	}
	return nil
}

// embeddedIDs returns the IDs among chunks that are already stored with a vector,
// or stored at all when no embedder is configured.
func (s *semanticStore) embeddedIDs(ctx context.Context, chunks []domain.Chunk) (map[string]struct{}, error) {
	args := make([]any, len(chunks))
	for i, c := range chunks {
		args[i] = c.ID
	}
	query := `SELECT id FROM chunks WHERE id IN (` +
		strings.TrimSuffix(strings.Repeat("?,", len(chunks)), ",") + `)`
	if s.embedder != nil {
		query += ` AND embedding IS NOT NULL AND length(embedding) > 0`
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError("querying indexed chunks", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, dbError("scanning chunk id", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterating chunk ids", err)
	}
	return ids, nil
}

// Query returns the best matching chunks, highest score first.
func (s *semanticStore) Query(ctx context.Context, q domain.SemanticQuery) ([]domain.SemanticHit, error) {
	vector := q.Vector
	if len(vector) == 0 && s.embedder != nil && q.Text != "" {
		v, err := s.embedder.Embed(ctx, q.Text)
		if err != nil {
			logger.Warn("Query embedding failed, using lexical scoring: %v", err)
		} else {
			vector = v
		}
	}
	terms := rank.Tokenize(q.Text)

	rows, err := s.store.db.QueryContext(ctx, `SELECT `+chunkColumns+` FROM chunks`)
	if err != nil {
		return nil, dbError("querying chunks", err)
	}
	defer rows.Close()

	chunks, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}

	var hits []domain.SemanticHit
	for i := range chunks {
		c := &chunks[i]
		if !rank.MatchesFilters(c.Metadata, q.Filters) {
			continue
		}
		if score := rank.Score(vector, terms, c); score > 0 {
			hits = append(hits, rank.Hit(c, score))
		}
	}
	return rank.Top(hits, q.TopK), nil
}

// Count returns the number of stored chunks.
func (s *semanticStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, dbError("counting chunks", err)
	}
	return n, nil
}

// Close is a no-op; the owning Store closes the database.
func (s *semanticStore) Close() error {
	return nil
}
