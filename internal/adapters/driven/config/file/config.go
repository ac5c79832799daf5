package file

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
)

// Configuration keys. Nested TOML tables flatten to these dot keys and each
// can be overridden by its MCE_ environment variable.
const (
	KeyConfidenceThreshold = "orchestrator.confidence_threshold"
	KeyMaxAttempts         = "orchestrator.max_attempts"
	KeyMaxPasses           = "orchestrator.max_passes"
	KeyWorkers             = "orchestrator.workers"
	KeySemanticTopK        = "orchestrator.semantic_top_k"
	KeyRetries             = "orchestrator.collaborator_retries"
	KeyRetryBackoff        = "orchestrator.retry_backoff"
	KeyRateLimit           = "orchestrator.rate_limit"

	KeyLLMProvider    = "llm.provider"
	KeyLLMBaseURL     = "llm.base_url"
	KeyLLMAPIKey      = "llm.api_key"
	KeyLLMModel       = "llm.model"
	KeyLLMTemperature = "llm.temperature"
	KeyLLMMaxTokens   = "llm.max_tokens"
	KeyLLMCacheTTL    = "llm.cache_ttl"

	KeyEmbeddingProvider = "embedding.provider"
	KeyEmbeddingBaseURL  = "embedding.base_url"
	KeyEmbeddingAPIKey   = "embedding.api_key"
	KeyEmbeddingModel    = "embedding.model"

	KeyCodePaths     = "scan.code_paths"
	KeyDocPaths      = "scan.doc_paths"
	KeyWatchDebounce = "scan.watch_debounce"

	KeyRulesFile = "rules.file"
	KeyDataDir   = "data.dir"
)

// Providers for the model services.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// Defaults not covered by domain.DefaultSettings.
const (
	DefaultTemperature   = 0.1
	DefaultMaxTokens     = 512
	DefaultCacheTTL      = time.Hour
	DefaultRateLimit     = 5.0
	DefaultWatchDebounce = 500 * time.Millisecond
)

// OrchestratorConfig holds the validated orchestrator tunables.
type OrchestratorConfig struct {
	ConfidenceThreshold float64       `validate:"gte=0,lte=1"`
	MaxAttempts         int           `validate:"gte=1"`
	MaxPasses           int           `validate:"gte=1"`
	Workers             int           `validate:"gte=1,lte=64"`
	SemanticTopK        int           `validate:"gte=1"`
	CollaboratorRetries int           `validate:"gte=0"`
	RetryBackoff        time.Duration `validate:"gte=0"`

	// RateLimit caps collaborator calls per second. Zero disables limiting.
	RateLimit float64 `validate:"gte=0"`
}

// Settings converts the tunables to domain settings.
func (c OrchestratorConfig) Settings() domain.Settings {
	return domain.Settings{
		ConfidenceThreshold: c.ConfidenceThreshold,
		MaxAttempts:         c.MaxAttempts,
		MaxPasses:           c.MaxPasses,
		Workers:             c.Workers,
		SemanticTopK:        c.SemanticTopK,
		CollaboratorRetries: c.CollaboratorRetries,
		RetryBackoff:        c.RetryBackoff,
	}
}

// LLMConfig configures the language model used for assessment and extraction.
type LLMConfig struct {
	Provider    string        `validate:"oneof=ollama openai none"`
	BaseURL     string        `validate:"omitempty,url"`
	APIKey      string        `validate:"required_if=Provider openai"`
	Model       string        `validate:"required_if=Provider ollama"`
	Temperature float64       `validate:"gte=0,lte=2"`
	MaxTokens   int           `validate:"gt=0"`
	CacheTTL    time.Duration `validate:"gte=0"`
}

// Enabled reports whether an LLM should be created.
func (c LLMConfig) Enabled() bool {
	return c.Provider != "" && c.Provider != ProviderNone
}

// EmbeddingConfig configures the embedding model used by the semantic store.
type EmbeddingConfig struct {
	Provider string `validate:"oneof=ollama openai none"`
	BaseURL  string `validate:"omitempty,url"`
	APIKey   string `validate:"required_if=Provider openai"`
	Model    string `validate:"required_if=Provider ollama"`
}

// Enabled reports whether an embedding service should be created.
func (c EmbeddingConfig) Enabled() bool {
	return c.Provider != "" && c.Provider != ProviderNone
}

// ScanConfig lists the roots scanned for code and documentation.
type ScanConfig struct {
	CodePaths     []string      `validate:"dive,required"`
	DocPaths      []string      `validate:"dive,required"`
	WatchDebounce time.Duration `validate:"gte=0"`
}

// Config is the complete, validated application configuration.
type Config struct {
	Orchestrator OrchestratorConfig
	LLM          LLMConfig
	Embedding    EmbeddingConfig
	Scan         ScanConfig

	// RulesFile is an optional YAML file of rule overrides.
	RulesFile string

	// DataDir holds the graph database and state checkpoints. Empty means ~/.mce/data.
	DataDir string
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadConfig reads the configuration from store, fills defaults for unset keys
// and validates the result. Validation failures wrap domain.ErrInvalidInput.
func LoadConfig(store driven.ConfigStore) (*Config, error) {
	d := domain.DefaultSettings()
	cfg := &Config{
		Orchestrator: OrchestratorConfig{
			ConfidenceThreshold: floatOr(store, KeyConfidenceThreshold, d.ConfidenceThreshold),
			MaxAttempts:         intOr(store, KeyMaxAttempts, d.MaxAttempts),
			MaxPasses:           intOr(store, KeyMaxPasses, d.MaxPasses),
			Workers:             intOr(store, KeyWorkers, d.Workers),
			SemanticTopK:        intOr(store, KeySemanticTopK, d.SemanticTopK),
			CollaboratorRetries: intOr(store, KeyRetries, d.CollaboratorRetries),
			RetryBackoff:        durationOr(store, KeyRetryBackoff, d.RetryBackoff),
			RateLimit:           floatOr(store, KeyRateLimit, DefaultRateLimit),
		},
		LLM: LLMConfig{
			Provider:    stringOr(store, KeyLLMProvider, ProviderNone),
			BaseURL:     store.GetString(KeyLLMBaseURL),
			APIKey:      store.GetString(KeyLLMAPIKey),
			Model:       store.GetString(KeyLLMModel),
			Temperature: floatOr(store, KeyLLMTemperature, DefaultTemperature),
			MaxTokens:   intOr(store, KeyLLMMaxTokens, DefaultMaxTokens),
			CacheTTL:    durationOr(store, KeyLLMCacheTTL, DefaultCacheTTL),
		},
		Embedding: EmbeddingConfig{
			Provider: stringOr(store, KeyEmbeddingProvider, ProviderNone),
			BaseURL:  store.GetString(KeyEmbeddingBaseURL),
			APIKey:   store.GetString(KeyEmbeddingAPIKey),
			Model:    store.GetString(KeyEmbeddingModel),
		},
		Scan: ScanConfig{
			CodePaths:     store.GetStringSlice(KeyCodePaths),
			DocPaths:      store.GetStringSlice(KeyDocPaths),
			WatchDebounce: durationOr(store, KeyWatchDebounce, DefaultWatchDebounce),
		},
		RulesFile: store.GetString(KeyRulesFile),
		DataDir:   store.GetString(KeyDataDir),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadSettings reads and validates only the orchestrator settings.
func LoadSettings(store driven.ConfigStore) (domain.Settings, error) {
	cfg, err := LoadConfig(store)
	if err != nil {
		return domain.Settings{}, err
	}
	return cfg.Orchestrator.Settings(), nil
}

// Validate checks every field against its declared range.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("%w: invalid configuration: %s", domain.ErrInvalidInput, strings.Join(msgs, "; "))
}

func stringOr(store driven.ConfigStore, key, fallback string) string {
	if v := store.GetString(key); v != "" {
		return v
	}
	return fallback
}

func intOr(store driven.ConfigStore, key string, fallback int) int {
	if _, ok := store.Get(key); !ok {
		return fallback
	}
	return store.GetInt(key)
}

func floatOr(store driven.ConfigStore, key string, fallback float64) float64 {
	if _, ok := store.Get(key); !ok {
		return fallback
	}
	return store.GetFloat(key)
}

func durationOr(store driven.ConfigStore, key string, fallback time.Duration) time.Duration {
	if _, ok := store.Get(key); !ok {
		return fallback
	}
	return store.GetDuration(key)
}
