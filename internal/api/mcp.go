// Package api exposes the session controller to agent frontends over the
// Model Context Protocol.
package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/mmx/internal/backend"
	"github.com/kalambet/mmx/internal/controller"
)

// StatusFetcher abstracts the backend's system status endpoint.
type StatusFetcher interface {
	Status(ctx context.Context) (backend.StatusInfo, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Session *controller.Session
	Status  StatusFetcher // optional; if nil, the status resource errors
}

// NewMCPServer creates an MCP server with all mmx tools and resources
// registered. The tools drive the same session controller as the CLI.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"mmx",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("mmx: multimodal similarity search over indexed image and audio collections."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("search_text",
			mcp.WithDescription("Search the active collection for images and audio matching a text description."),
			mcp.WithString("query", mcp.Description("Text to search for"), mcp.Required()),
			mcp.WithNumber("results", mcp.Description("Requested result count; one of 3, 5, 8, 10, 15, 20 (default 5)")),
			mcp.WithString("collection", mcp.Description("Target collection (default: the active one)")),
		),
		mcpSearchText(deps),
	)

	s.AddTool(
		mcp.NewTool("search_media",
			mcp.WithDescription("Query-by-example: search with a local image or audio file as the query."),
			mcp.WithString("path", mcp.Description("Path to the query image or audio file"), mcp.Required()),
			mcp.WithNumber("results", mcp.Description("Requested result count; one of 3, 5, 8, 10, 15, 20 (default 5)")),
			mcp.WithString("collection", mcp.Description("Target collection (default: the active one)")),
		),
		mcpSearchMedia(deps),
	)

	s.AddTool(
		mcp.NewTool("list_collections",
			mcp.WithDescription("List the known collections with item counts and last-updated timestamps."),
		),
		mcpListCollections(deps),
	)

	s.AddTool(
		mcp.NewTool("create_collection",
			mcp.WithDescription("Create a new named collection and make it active. Names: 3-32 ASCII letters, digits or underscore, starting with a letter or underscore."),
			mcp.WithString("name", mcp.Description("Collection name"), mcp.Required()),
		),
		mcpCreateCollection(deps),
	)

	s.AddTool(
		mcp.NewTool("ingest_files",
			mcp.WithDescription("Index local image and audio files into the active collection. Files are processed sequentially; unsupported types are skipped."),
			mcp.WithArray("paths", mcp.Description("Paths of files to index"), mcp.Required()),
		),
		mcpIngestFiles(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"mmx://recent",
			"Recent Uploads",
			mcp.WithResourceDescription("Recently ingested items, most recent first"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"mmx://status",
			"System Status",
			mcp.WithResourceDescription("Backend index size and cross-modal capability"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStatus(deps),
	)

	return s
}

func resolveCount(req mcp.CallToolRequest) int {
	n := req.GetInt("results", 5)
	for _, opt := range controller.ResultCountOptions {
		if n == opt {
			return n
		}
	}
	return 5
}

func resultsJSON(items []backend.ResultItem) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(items)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpSearchText(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		items, err := deps.Session.DispatchQuery(ctx, controller.Query{
			Modality:   controller.ModalityText,
			Text:       query,
			NumResults: resolveCount(req),
			Collection: req.GetString("collection", ""),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return resultsJSON(items)
	}
}

func mcpSearchMedia(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil {
			return mcpError("path is required"), nil
		}

		kind, ok := controller.DetectMediaType(path)
		if !ok {
			return mcpError(fmt.Sprintf("%s is neither an image nor an audio file", path)), nil
		}
		modality := controller.ModalityImage
		if kind == backend.FileTypeAudio {
			modality = controller.ModalityAudio
		}

		items, err := deps.Session.DispatchQuery(ctx, controller.Query{
			Modality:   modality,
			FilePath:   path,
			NumResults: resolveCount(req),
			Collection: req.GetString("collection", ""),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return resultsJSON(items)
	}
}

func mcpListCollections(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		cols, err := deps.Session.Registry.Refresh(ctx)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		b, err := json.Marshal(cols)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal collections: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpCreateCollection(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil {
			return mcpError("name is required"), nil
		}

		col, err := deps.Session.Registry.Create(ctx, name)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(fmt.Sprintf("Created collection %s; it is now active", col.Name)), nil
	}
}

func mcpIngestFiles(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		paths := req.GetStringSlice("paths", nil)
		if len(paths) == 0 {
			return mcpError("paths is required"), nil
		}

		accepted := deps.Session.Uploads.Enqueue(paths)
		if len(accepted) == 0 {
			return mcpError("no supported image or audio files among the given paths"), nil
		}

		deps.Session.Uploads.RunBatch(ctx)

		type itemOutcome struct {
			Filename string `json:"filename"`
			Type     string `json:"type"`
			Status   string `json:"status"`
			Error    string `json:"error,omitempty"`
		}
		byID := make(map[string]controller.UploadItem)
		for _, item := range deps.Session.Uploads.Items() {
			byID[item.ID] = item
		}
		outcomes := make([]itemOutcome, len(accepted))
		for i, a := range accepted {
			item := byID[a.ID]
			outcomes[i] = itemOutcome{
				Filename: item.Filename,
				Type:     string(item.DeclaredType),
				Status:   string(item.Status),
				Error:    item.Err,
			}
		}

		b, err := json.Marshal(outcomes)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal outcomes: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		if err := deps.Session.Activity.Refresh(ctx); err != nil {
			return nil, fmt.Errorf("failed to refresh recent uploads: %w", err)
		}

		b, err := json.Marshal(deps.Session.Activity.Records())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal recent uploads: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceStatus(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		if deps.Status == nil {
			return nil, fmt.Errorf("status not available")
		}

		info, err := deps.Status.Status(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch status: %w", err)
		}

		b, err := json.Marshal(info)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal status: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
