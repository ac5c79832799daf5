package postprocessors

import (
	"github.com/custodia-labs/mce/internal/core/ports/driven"
	"github.com/custodia-labs/mce/internal/postprocessors/chunker"
	"github.com/custodia-labs/mce/internal/postprocessors/summary"
)

// RegisterDefaults registers all built-in processors with the registry.
// The summary processor is registered only when llm is non-nil.
func RegisterDefaults(r *Registry, llm driven.LLMService) {
	r.Register("chunker", buildChunker)
	if llm != nil {
		r.Register("summary", func(cfg map[string]any) (driven.PostProcessor, error) {
			return buildSummary(llm, cfg)
		})
	}
}

// DefaultPipeline returns the processors used for documentation scans.
func DefaultPipeline(llm driven.LLMService) *Pipeline {
	r := NewRegistry()
	RegisterDefaults(r, llm)
	names := []string{"chunker"}
	if r.Has("summary") {
		names = append(names, "summary")
	}
	p, err := r.BuildPipeline(names, nil)
	if err != nil {
		return NewPipeline(chunker.New())
	}
	return p
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - chunk_size (int): Characters per chunk (default: 1000)
//   - overlap (int): Overlapping characters when splitting a paragraph (default: 200)
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if size, ok := getIntFromConfig(cfg, "chunk_size"); ok {
		opts = append(opts, chunker.WithChunkSize(size))
	}
	if overlap, ok := getIntFromConfig(cfg, "overlap"); ok {
		opts = append(opts, chunker.WithOverlap(overlap))
	}

	return chunker.New(opts...), nil
}

// buildSummary creates a summary processor. Supported config keys:
//   - max_length (int): Summary length in words (default: 40)
//   - min_chars (int): Shortest chunk that gets summarised (default: 200)
func buildSummary(llm driven.LLMService, cfg map[string]any) (driven.PostProcessor, error) {
	var opts []summary.Option

	if n, ok := getIntFromConfig(cfg, "max_length"); ok {
		opts = append(opts, summary.WithMaxLength(n))
	}
	if n, ok := getIntFromConfig(cfg, "min_chars"); ok {
		opts = append(opts, summary.WithMinChars(n))
	}

	return summary.New(llm, opts...)
}

// getIntFromConfig extracts an int from a generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) (int, bool) {
	switch v := cfg[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
