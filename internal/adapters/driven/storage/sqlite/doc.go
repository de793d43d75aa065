// Package sqlite provides SQLite-based implementations of the metadata
// store ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. Two kinds of database are managed:
//
//   - ControlStore: The domain registry and per-domain configuration
//   - DomainStore: One database per domain holding documents, chunks and embeddings
//
// # Schema
//
// Each database kind has versioned migrations embedded from migrations/control
// and migrations/domain. The document hash is UNIQUE, which makes the database
// the only duplicate-detection authority, and embeddings carry a CHECK that
// vector_index_id equals chunk_id.
//
// # Data Location
//
// By default, the control database is stored at ~/.domainrag/control.db and
// domain databases live under the configured storage base path.
//
// # Thread Safety
//
// All operations are safe for concurrent use. Connections run in WAL mode with
// foreign keys enabled on every pooled connection.
package sqlite
