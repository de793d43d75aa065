// Package tui provides an interactive terminal interface for asking
// questions of knowledge domains.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/domainrag/internal/core/ports/driving"
)

// Ports aggregates the driving port interfaces required by the TUI.
type Ports struct {
	// Query answers questions.
	Query driving.QueryService

	// Domains lists the domains a question can be scoped to.
	Domains driving.DomainService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil {
		return ErrInvalidPorts
	}
	if p.Query == nil {
		return ErrMissingQueryService
	}
	if p.Domains == nil {
		return ErrMissingDomainService
	}
	return nil
}
