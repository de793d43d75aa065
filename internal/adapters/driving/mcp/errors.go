// Package mcp provides an MCP (Model Context Protocol) server adapter for domainrag.
// It lets AI assistants query knowledge domains and browse their documents.
package mcp

import "errors"

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("mcp: query service is required")
