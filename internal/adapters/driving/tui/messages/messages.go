// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/domainrag/internal/core/domain"
)

// QueryCompleted carries an answer back to the model.
type QueryCompleted struct {
	Result *domain.QueryResult
	Err    error
}

// DomainStatus pairs a domain with whether it holds any data.
type DomainStatus struct {
	Domain    domain.KnowledgeDomain
	Populated bool
}

// DomainsLoaded carries the registered domains back to the model.
type DomainsLoaded struct {
	Domains []DomainStatus
	Err     error
}

// ScopeChanged is sent when the set of domains a question is asked of changes.
// An empty scope lets the model choose.
type ScopeChanged struct {
	Domains []string
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ErrorOccurred is sent when an operation fails outside a typed result.
type ErrorOccurred struct {
	Err error
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewAsk is the question input and answer view.
	ViewAsk ViewType = iota
	// ViewDomains is the domain scope picker.
	ViewDomains
	// ViewHelp is the keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewAsk:
		return "ask"
	case ViewDomains:
		return "domains"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}
