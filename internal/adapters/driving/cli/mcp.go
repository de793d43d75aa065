package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/domainrag/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

Every domain is reconciled before the server accepts requests, and edits
to the config file are applied while it runs.

By default, the server communicates over stdio using JSON-RPC and can be
used with desktop assistants and other MCP-compatible clients.

Use --port to start an HTTP server instead, which enables:
  - Testing with MCP Inspector web UI
  - Remote access via HTTP

Examples:
  # Stdio mode (default)
  domainrag mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  domainrag mcp serve --port 8080

Client configuration:
  {
    "mcpServers": {
      "domainrag": {
        "command": "/path/to/domainrag",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	ports := &mcp.Ports{
		Query:      queryService,
		Domains:    domainService,
		Reconciler: reconciler,
	}

	server, err := mcp.NewServer(ports, logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if watchConfig != nil {
		go func() {
			if err := watchConfig(ctx); err != nil {
				logger.Warn("config hot reload stopped", "err", err)
			}
		}()
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(ctx, addr)
	}

	return server.Run(ctx)
}
