package mcp

import (
	"github.com/custodia-labs/domainrag/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Query answers questions and retrieves chunks.
	Query driving.QueryService

	// Domains lists domains and their documents.
	Domains driving.DomainService

	// Reconciler repairs index drift before the server starts serving.
	Reconciler driving.Reconciler
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	// Domains and Reconciler are optional
	return nil
}
