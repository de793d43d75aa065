// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Stores
//
//   - ControlStore: Domain registry and per-domain configuration
//   - DomainStoreOpener / DomainStore / DomainTx: Per-domain documents, chunks, embeddings
//   - VectorStore: One flat nearest-neighbour index file per domain
//   - ConfigStore: Application configuration with hot reload
//
// # Processing
//
//   - TextExtractor: Reads files into pages (PDF, DOCX, HTML, plain text)
//   - TextNormaliser: Prepares text for embedding
//   - ChunkingStrategy / ChunkingProvider: Turns pages into chunk drafts
//   - KeywordExtractor: Ranks chunk keywords
//
// # Providers
//
//   - EmbeddingService: Generates vector embeddings
//   - LLMService: Generates text for domain selection and answers
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or extractor package
package driven
