// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
//   - DomainService: domain lifecycle with staged rename and tombstone delete
//   - IngestionService: per-file extract, chunk, embed and store
//   - ReconcileService: repairs drift between a domain database and its index
//   - QueryService: domain selection, retrieval and answer generation
//
// Services depend only on the domain and port packages plus the
// structured logger. Loggers are passed in, never global.
package services
