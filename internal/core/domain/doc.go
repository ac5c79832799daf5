// Package domain defines the metadata graph model for mce.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - DataEntity / Field: extracted structural units and their attributes
//   - Document / Chunk: documentation sources and their content-addressed segments
//   - MetadataGap: a detected deficiency in the graph and its lifecycle
//   - AttemptRecord / AgentState: the orchestrator's explicit run state
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
