package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for domainrag resources.
	uriScheme = "domainrag://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for listing domains.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "domains",
		Name:        "domains",
		Description: "List of all knowledge domains",
		MIMEType:    "application/json",
	}, s.handleDomainsResource)

	// Template for domain documents.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "domains/{domain}/documents",
		Name:        "domain-documents",
		Description: "Documents ingested into a specific domain",
		MIMEType:    "application/json",
	}, s.handleDocumentsResource)
}

// handleDomainsResource returns a list of all domains.
func (s *Server) handleDomainsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Domains == nil {
		return jsonResult(req.Params.URI, "[]"), nil
	}

	_, output, err := s.handleListDomains(ctx, nil, ListDomainsInput{})
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(output.Domains, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling domains: %w", err)
	}
	return jsonResult(req.Params.URI, string(data)), nil
}

// handleDocumentsResource returns documents for a specific domain.
func (s *Server) handleDocumentsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Domains == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// Extract the domain from URI: domainrag://domains/{domain}/documents
	name := extractDomainName(req.Params.URI)
	if name == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	docs, err := s.ports.Domains.ListDocuments(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	infos := make([]DocumentOutput, len(docs))
	for i := range docs {
		infos[i] = documentOutput(&docs[i])
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling documents: %w", err)
	}
	return jsonResult(req.Params.URI, string(data)), nil
}

func jsonResult(uri, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		}},
	}
}

// extractDomainName extracts the domain from a URI like
// domainrag://domains/{domain}/documents. Names may be percent-encoded.
func extractDomainName(uri string) string {
	const prefix = uriScheme + "domains/"
	const suffix = "/documents"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	uri = strings.TrimPrefix(uri, prefix)
	if !strings.HasSuffix(uri, suffix) {
		return ""
	}

	name, err := url.PathUnescape(strings.TrimSuffix(uri, suffix))
	if err != nil {
		return ""
	}
	return name
}
