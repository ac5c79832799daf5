// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - GraphStore: Entity, field, document, relationship and gap persistence
//   - SemanticStore: Chunk similarity search
//   - Scanner: Broad and targeted extraction from code and documentation
//   - GapRule: One completeness check over the graph
//   - StateStore: Agent state checkpoints
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: Generates vector embeddings. Without it, semantic lookups score lexically.
//   - LLMService: Language model operations. Without it, assessment falls back to heuristics.
//   - Assessor: Judges semantic evidence. Without it, semantic lookups never resolve gaps.
//   - Extractor: LLM-backed structured extraction from documentation chunks.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or scanner package
package driven
