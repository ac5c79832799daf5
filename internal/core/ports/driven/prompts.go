package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
const (
	// PromptSummarise creates summaries of chunk content.
	// The prompt template expects %d (max length) and %s (content) placeholders.
	PromptSummarise = "summarise"

	// PromptAssess judges whether retrieved chunks resolve a gap.
	// The prompt template expects %s (gap kind), %s (node), %s (gap description)
	// and %s (evidence) placeholders.
	PromptAssess = "assess"

	// PromptExtract pulls entities and fields out of a documentation chunk.
	// The prompt template expects a %s placeholder for the chunk content.
	PromptExtract = "extract"
)

// PromptStoreAware is an optional interface for services that can use custom prompts.
// Services implementing this interface can have their prompt templates customised
// by injecting a PromptStore after construction.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service should use hardcoded default prompts.
	SetPromptStore(store PromptStore)
}
