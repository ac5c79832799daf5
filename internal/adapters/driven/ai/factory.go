// Package ai builds the language model and embedding services from configuration.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/mce/internal/adapters/driven/config/file"
	ollamaembed "github.com/custodia-labs/mce/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/mce/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/mce/internal/adapters/driven/llm/cache"
	ollamallm "github.com/custodia-labs/mce/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/mce/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/mce/internal/adapters/driven/resilience"
	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
	"github.com/custodia-labs/mce/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult contains the result of AI service initialisation.
// A nil service means the feature runs in its degraded, model-free mode.
type InitResult struct {
	LLMService       driven.LLMService
	EmbeddingService driven.EmbeddingService
	Warnings         []string // Non-fatal issues that caused fallback.
	FellBack         bool     // True if a configured service was unavailable.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() error {
	var errs []error
	if r.LLMService != nil {
		errs = append(errs, r.LLMService.Close())
	}
	if r.EmbeddingService != nil {
		errs = append(errs, r.EmbeddingService.Close())
	}
	return errors.Join(errs...)
}

// Init creates and validates the configured services. Unreachable services
// are dropped with a warning rather than failing startup.
// Calls are retried and rate limited by policy; LLM answers are cached for
// cfg.LLM.CacheTTL.
func Init(ctx context.Context, cfg *file.Config, prompts driven.PromptStore, policy *resilience.Policy) *InitResult {
	result := &InitResult{}

	llm, err := CreateAndValidateLLMService(ctx, cfg.LLM, prompts)
	switch {
	case err != nil:
		result.fallback(err)
	case llm != nil:
		llm = resilience.LLM(llm, policy)
		if cfg.LLM.CacheTTL > 0 {
			llm = cache.New(llm, cfg.LLM.CacheTTL)
		}
		result.LLMService = llm
	}

	embedder, err := CreateAndValidateEmbeddingService(ctx, cfg.Embedding)
	switch {
	case err != nil:
		result.fallback(err)
	case embedder != nil:
		result.EmbeddingService = resilience.Embedding(embedder, policy)
	}

	return result
}

func (r *InitResult) fallback(err error) {
	logger.Warn("%v", err)
	r.Warnings = append(r.Warnings, err.Error())
	r.FellBack = true
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
// Returns nil without error when no provider is configured.
func CreateAndValidateLLMService(ctx context.Context, cfg file.LLMConfig, prompts driven.PromptStore) (driven.LLMService, error) {
	svc, err := CreateLLMService(cfg, prompts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(pingCtx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w); assessment falls back to heuristics",
			domain.ErrLLMUnavailable, err)
	}

	return svc, nil
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns nil without error when no provider is configured.
func CreateAndValidateEmbeddingService(ctx context.Context, cfg file.EmbeddingConfig) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(pingCtx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w); semantic lookup falls back to lexical ranking",
			domain.ErrEmbeddingUnavailable, err)
	}

	return svc, nil
}

// CreateLLMService creates the LLM service for the configured provider.
// Returns nil if the provider is not configured.
func CreateLLMService(cfg file.LLMConfig, prompts driven.PromptStore) (driven.LLMService, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	switch cfg.Provider {
	case file.ProviderOllama:
		svc := ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
		if prompts != nil {
			svc.SetPromptStore(prompts)
		}
		return svc, nil

	case file.ProviderOpenAI:
		svc, err := openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		if prompts != nil {
			svc.SetPromptStore(prompts)
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// CreateEmbeddingService creates the embedding service for the configured provider.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(cfg file.EmbeddingConfig) (driven.EmbeddingService, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	switch cfg.Provider {
	case file.ProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}), nil

	case file.ProviderOpenAI:
		svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
