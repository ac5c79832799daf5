// Package sqlite provides a SQLite-based implementation of the graph and semantic stores.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements two port interfaces
// through a single database connection:
//
//   - GraphStore: entities, fields, documents, chunks, relationships and the gap ledger
//   - SemanticStore: similarity search over stored chunks and their embeddings
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.mce/data/graph.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
