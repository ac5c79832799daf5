package resilience

import (
	"context"
	"fmt"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
)

// ==================== Scanner ====================

type scanner struct {
	inner  driven.Scanner
	policy *Policy
}

var (
	_ driven.Scanner = (*scanner)(nil)
	_ driven.Watcher = (*scanner)(nil)
)

// Scanner wraps a scanner with the policy. Watch is passed through when the
// wrapped scanner supports it.
func Scanner(inner driven.Scanner, p *Policy) driven.Scanner {
	return &scanner{inner: inner, policy: p}
}

func (s *scanner) Kind() domain.SourceKind { return s.inner.Kind() }

func (s *scanner) ScanBroad(ctx context.Context, src domain.ScanSource) (*domain.ExtractedItems, error) {
	return call(ctx, s.policy, "scan "+string(src.Kind), func(ctx context.Context) (*domain.ExtractedItems, error) {
		return s.inner.ScanBroad(ctx, src)
	})
}

func (s *scanner) ScanTargeted(ctx context.Context, loc domain.Location, focus domain.NodeRef) (*domain.ExtractedItems, error) {
	return call(ctx, s.policy, "targeted scan "+string(s.inner.Kind()), func(ctx context.Context) (*domain.ExtractedItems, error) {
		return s.inner.ScanTargeted(ctx, loc, focus)
	})
}

func (s *scanner) Watch(ctx context.Context, root string) (<-chan string, error) {
	w, ok := s.inner.(driven.Watcher)
	if !ok {
		return nil, fmt.Errorf("%w: %s scanner cannot watch", domain.ErrInvalidInput, s.inner.Kind())
	}
	return w.Watch(ctx, root)
}

// ==================== Semantic Store ====================

type semanticStore struct {
	inner  driven.SemanticStore
	policy *Policy
}

var _ driven.SemanticStore = (*semanticStore)(nil)

// SemanticStore wraps a semantic store with the policy.
func SemanticStore(inner driven.SemanticStore, p *Policy) driven.SemanticStore {
	return &semanticStore{inner: inner, policy: p}
}

func (s *semanticStore) Index(ctx context.Context, chunks []domain.Chunk) error {
	return s.policy.Do(ctx, "semantic index", func(ctx context.Context) error {
		return s.inner.Index(ctx, chunks)
	})
}

func (s *semanticStore) Query(ctx context.Context, q domain.SemanticQuery) ([]domain.SemanticHit, error) {
	return call(ctx, s.policy, "semantic query", func(ctx context.Context) ([]domain.SemanticHit, error) {
		return s.inner.Query(ctx, q)
	})
}

func (s *semanticStore) Close() error { return s.inner.Close() }

// ==================== LLM ====================

type llmService struct {
	inner  driven.LLMService
	policy *Policy
}

var _ driven.LLMService = (*llmService)(nil)

// LLM wraps a language model with the policy.
func LLM(inner driven.LLMService, p *Policy) driven.LLMService {
	return &llmService{inner: inner, policy: p}
}

func (l *llmService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	return call(ctx, l.policy, "llm generate", func(ctx context.Context) (string, error) {
		return l.inner.Generate(ctx, prompt, opts)
	})
}

func (l *llmService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	return call(ctx, l.policy, "llm chat", func(ctx context.Context) (string, error) {
		return l.inner.Chat(ctx, messages, opts)
	})
}

func (l *llmService) Summarise(ctx context.Context, content string, maxLength int) (string, error) {
	return call(ctx, l.policy, "llm summarise", func(ctx context.Context) (string, error) {
		return l.inner.Summarise(ctx, content, maxLength)
	})
}

func (l *llmService) ModelName() string              { return l.inner.ModelName() }
func (l *llmService) Ping(ctx context.Context) error { return l.inner.Ping(ctx) }
func (l *llmService) Close() error                   { return l.inner.Close() }

// ==================== Embeddings ====================

type embeddingService struct {
	inner  driven.EmbeddingService
	policy *Policy
}

var _ driven.EmbeddingService = (*embeddingService)(nil)

// Embedding wraps an embedding service with the policy.
func Embedding(inner driven.EmbeddingService, p *Policy) driven.EmbeddingService {
	return &embeddingService{inner: inner, policy: p}
}

func (e *embeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	return call(ctx, e.policy, "embed", func(ctx context.Context) ([]float32, error) {
		return e.inner.Embed(ctx, text)
	})
}

func (e *embeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return call(ctx, e.policy, "embed batch", func(ctx context.Context) ([][]float32, error) {
		return e.inner.EmbedBatch(ctx, texts)
	})
}

func (e *embeddingService) Dimensions() int                { return e.inner.Dimensions() }
func (e *embeddingService) ModelName() string              { return e.inner.ModelName() }
func (e *embeddingService) Ping(ctx context.Context) error { return e.inner.Ping(ctx) }
func (e *embeddingService) Close() error                   { return e.inner.Close() }

// ==================== Assessor ====================

type assessor struct {
	inner  driven.Assessor
	policy *Policy
}

var _ driven.Assessor = (*assessor)(nil)

// Assessor wraps an assessor with the policy.
func Assessor(inner driven.Assessor, p *Policy) driven.Assessor {
	return &assessor{inner: inner, policy: p}
}

func (a *assessor) Assess(ctx context.Context, gap *domain.MetadataGap, node *domain.NodeView, hits []domain.SemanticHit) (*domain.Assessment, error) {
	return call(ctx, a.policy, "assess "+gap.ID, func(ctx context.Context) (*domain.Assessment, error) {
		return a.inner.Assess(ctx, gap, node, hits)
	})
}
