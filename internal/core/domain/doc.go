// Package domain defines the core business entities for domainrag.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - KnowledgeDomain: A named knowledge base with its own database and vector index
//   - DomainConfig: Per-domain chunking and embedding parameters
//   - DocumentFile: A unique ingested document, keyed by content hash
//   - Chunk: A retrievable unit of text whose id equals its vector index id
//   - AppConfig: Validated application configuration
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
