package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Version is the MCP server version.
const Version = "0.1.0"

// Server is the MCP server for domainrag.
type Server struct {
	ports  *Ports
	server *mcp.Server
	logger *log.Logger
}

// NewServer creates a new MCP server with the given ports.
func NewServer(ports *Ports, logger *log.Logger) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	impl := &mcp.Implementation{
		Name:    "domainrag",
		Version: Version,
	}

	s := &Server{
		ports:  ports,
		server: mcp.NewServer(impl, nil),
		logger: logger,
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// ReconcileAll repairs every domain's index before serving. Failures are
// logged and never stop the server.
func (s *Server) ReconcileAll(ctx context.Context) {
	if s.ports.Reconciler == nil || s.ports.Domains == nil {
		return
	}
	domains, err := s.ports.Domains.List(ctx)
	if err != nil {
		s.logger.Warn("listing domains for reconciliation", "err", err)
		return
	}
	for i := range domains {
		if _, err := s.ports.Reconciler.Reconcile(ctx, domains[i].Name); err != nil {
			s.logger.Warn("reconciliation failed", "domain", domains[i].Name, "err", err)
		}
	}
}

// Run reconciles and starts the MCP server over stdio.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Run(ctx context.Context) error {
	s.ReconcileAll(ctx)
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP reconciles and starts the MCP server over HTTP on the specified address.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	s.ReconcileAll(ctx)

	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background()) //nolint:errcheck
	}()

	s.logger.Info("mcp server listening", "addr", addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
