package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/domainrag/internal/core/domain"
)

// errNoDomainService is returned by tools that browse domains when the
// server was built without a domain service.
var errNoDomainService = errors.New("mcp: domain service is not configured")

// QueryInput is the input schema for the query tool.
type QueryInput struct {
	Question string   `json:"question" jsonschema:"the question to answer from domain knowledge"`
	Domains  []string `json:"domains,omitempty" jsonschema:"domains to search; omit to let the model choose"`
}

// QueryOutput is the output schema for the query tool.
type QueryOutput struct {
	Answer          string        `json:"answer"`
	SelectedDomains []string      `json:"selected_domains"`
	AutoSelected    bool          `json:"auto_selected"`
	Sources         []ChunkOutput `json:"sources"`
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query   string   `json:"query" jsonschema:"the text to find similar chunks for"`
	Domains []string `json:"domains,omitempty" jsonschema:"domains to search; omit to let the model choose"`
	Limit   int      `json:"limit,omitempty" jsonschema:"maximum number of chunks per domain (default retrieval_k)"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []ChunkOutput `json:"results"`
	Count   int           `json:"count"`
}

// ChunkOutput represents a single retrieved chunk.
type ChunkOutput struct {
	Domain   string   `json:"domain"`
	ChunkID  int64    `json:"chunk_id"`
	Content  string   `json:"content"`
	Pages    []int    `json:"pages,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	Distance float32  `json:"distance"`
}

// ListDomainsInput is the input schema for the list_domains tool.
type ListDomainsInput struct{}

// ListDomainsOutput is the output schema for the list_domains tool.
type ListDomainsOutput struct {
	Domains []DomainOutput `json:"domains"`
}

// DomainOutput describes one knowledge domain.
type DomainOutput struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Keywords       string `json:"keywords"`
	TotalDocuments int    `json:"total_documents"`
	Populated      bool   `json:"populated"`
}

// ListDocumentsInput is the input schema for the list_documents tool.
type ListDocumentsInput struct {
	Domain string `json:"domain" jsonschema:"the domain whose documents to list"`
}

// ListDocumentsOutput is the output schema for the list_documents tool.
type ListDocumentsOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Count     int              `json:"count"`
}

// DocumentOutput describes one ingested document.
type DocumentOutput struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Path  string `json:"path"`
	Pages int    `json:"pages"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query",
		Description: "Answer a question from the knowledge stored in domains",
	}, s.handleQuery)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Retrieve the chunks most similar to a query without generating an answer",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_domains",
		Description: "List knowledge domains with their descriptions",
	}, s.handleListDomains)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List the documents ingested into a domain",
	}, s.handleListDocuments)
}

// handleQuery handles the query tool invocation.
func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, QueryOutput, error) {
	result, err := s.ports.Query.Query(ctx, input.Question, input.Domains)
	if err != nil {
		return nil, QueryOutput{}, err
	}

	return nil, QueryOutput{
		Answer:          result.Answer,
		SelectedDomains: result.Metrics.SelectedDomains,
		AutoSelected:    result.Metrics.AutoSelected,
		Sources:         chunkOutputs(result.Chunks),
	}, nil
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	chunks, err := s.ports.Query.Retrieve(ctx, input.Query, input.Domains, input.Limit)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	return nil, SearchOutput{
		Results: chunkOutputs(chunks),
		Count:   len(chunks),
	}, nil
}

// handleListDomains handles the list_domains tool invocation.
func (s *Server) handleListDomains(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListDomainsInput,
) (*mcp.CallToolResult, ListDomainsOutput, error) {
	if s.ports.Domains == nil {
		return nil, ListDomainsOutput{}, errNoDomainService
	}

	domains, err := s.ports.Domains.List(ctx)
	if err != nil {
		return nil, ListDomainsOutput{}, fmt.Errorf("listing domains: %w", err)
	}

	output := ListDomainsOutput{Domains: make([]DomainOutput, len(domains))}
	for i := range domains {
		output.Domains[i] = DomainOutput{
			Name:           domains[i].Name,
			Description:    domains[i].Description,
			Keywords:       domains[i].Keywords,
			TotalDocuments: domains[i].TotalDocuments,
			Populated:      s.ports.Domains.IsPopulated(&domains[i]),
		}
	}
	return nil, output, nil
}

// handleListDocuments handles the list_documents tool invocation.
func (s *Server) handleListDocuments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	if s.ports.Domains == nil {
		return nil, ListDocumentsOutput{}, errNoDomainService
	}

	docs, err := s.ports.Domains.ListDocuments(ctx, input.Domain)
	if err != nil {
		return nil, ListDocumentsOutput{}, fmt.Errorf("listing documents: %w", err)
	}

	output := ListDocumentsOutput{
		Documents: make([]DocumentOutput, len(docs)),
		Count:     len(docs),
	}
	for i := range docs {
		output.Documents[i] = documentOutput(&docs[i])
	}
	return nil, output, nil
}

func chunkOutputs(chunks []domain.RetrievedChunk) []ChunkOutput {
	out := make([]ChunkOutput, len(chunks))
	for i := range chunks {
		out[i] = ChunkOutput{
			Domain:   chunks[i].Domain,
			ChunkID:  chunks[i].ChunkID,
			Content:  chunks[i].Content,
			Pages:    chunks[i].Metadata.PageList,
			Keywords: chunks[i].Metadata.Keywords,
			Distance: chunks[i].Distance,
		}
	}
	return out
}

func documentOutput(d *domain.DocumentFile) DocumentOutput {
	return DocumentOutput{
		ID:    d.ID,
		Name:  d.Name,
		Path:  d.Path,
		Pages: d.TotalPages,
	}
}
