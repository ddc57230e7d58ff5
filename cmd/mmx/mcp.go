package main

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/mmx/internal/api"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the search and ingest operations as MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		// Best-effort initial selection; tools can still name a collection
		// explicitly.
		if err := a.selectCollection(cmd.Context(), ""); err != nil {
			printWarning("%v", err)
		}

		s := api.NewMCPServer(api.MCPDeps{
			Session: a.session,
			Status:  a.client,
		})
		return server.ServeStdio(s)
	},
}
