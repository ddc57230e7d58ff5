package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/mmx/internal/backend"
	"github.com/kalambet/mmx/internal/controller"
	"github.com/kalambet/mmx/internal/mockbackend"
)

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	req := mcp.ReadResourceRequest{}
	req.Params.URI = uri
	return req
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("tool result has no content")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", result.Content[0])
	}
	return tc.Text
}

// newTestMCPDeps wires a session to an in-memory backend with one seeded
// collection already active.
func newTestMCPDeps(t *testing.T) (MCPDeps, *mockbackend.Server) {
	t.Helper()
	mock := mockbackend.New()
	mock.Seed("photos", "sunset.jpg", "waves.wav", "forest.png")

	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)

	client := backend.New(srv.URL, "", 5*time.Second)
	session := controller.NewSession(client, nil)
	if _, err := session.Registry.Refresh(context.Background()); err != nil {
		t.Fatalf("initial refresh: %v", err)
	}

	return MCPDeps{Session: session, Status: client}, mock
}

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func TestMCPSearchText(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpSearchText(deps)

	req := makeCallToolRequest("search_text", map[string]interface{}{
		"query":   "sunset over water",
		"results": 3,
	})
	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}

	var items []backend.ResultItem
	if err := json.Unmarshal([]byte(toolText(t, result)), &items); err != nil {
		t.Fatalf("unmarshalling results: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("got %d items, want 3", len(items))
	}
	if items[0].Rank != 1 {
		t.Errorf("items[0].Rank = %d", items[0].Rank)
	}
}

func TestMCPSearchText_MissingQuery(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpSearchText(deps)

	result, err := handler(context.Background(), makeCallToolRequest("search_text", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Error("expected IsError for missing query")
	}
}

func TestMCPSearchText_InvalidCountFallsBackToDefault(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpSearchText(deps)

	req := makeCallToolRequest("search_text", map[string]interface{}{
		"query":   "anything",
		"results": 7,
	})
	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}
	var items []backend.ResultItem
	json.Unmarshal([]byte(toolText(t, result)), &items)
	if len(items) != 3 {
		// Seeded collection has 3 items; default 5 is capped by the index.
		t.Errorf("got %d items", len(items))
	}
}

func TestMCPSearchMedia(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpSearchMedia(deps)

	dir := t.TempDir()
	path := filepath.Join(dir, "query.png")
	if err := os.WriteFile(path, pngHeader, 0o644); err != nil {
		t.Fatal(err)
	}

	req := makeCallToolRequest("search_media", map[string]interface{}{"path": path})
	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}
}

func TestMCPSearchMedia_RejectsNonMedia(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpSearchMedia(deps)

	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("plain text"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := handler(context.Background(), makeCallToolRequest("search_media", map[string]interface{}{"path": path}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Error("expected IsError for a non-media file")
	}
}

func TestMCPListCollections(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpListCollections(deps)

	result, err := handler(context.Background(), makeCallToolRequest("list_collections", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}

	var cols []backend.Collection
	if err := json.Unmarshal([]byte(toolText(t, result)), &cols); err != nil {
		t.Fatal(err)
	}
	if len(cols) != 1 || cols[0].Name != "photos" || cols[0].ItemCount != 3 {
		t.Errorf("cols = %+v", cols)
	}
}

func TestMCPCreateCollection(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpCreateCollection(deps)

	result, err := handler(context.Background(), makeCallToolRequest("create_collection", map[string]interface{}{"name": "field_audio"}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}
	if deps.Session.Registry.Active() != "field_audio" {
		t.Errorf("active = %q after create", deps.Session.Registry.Active())
	}

	// Invalid name is rejected client-side.
	result, err = handler(context.Background(), makeCallToolRequest("create_collection", map[string]interface{}{"name": "ab"}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Error("expected IsError for an invalid name")
	}
}

func TestMCPIngestFiles(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpIngestFiles(deps)

	dir := t.TempDir()
	png := filepath.Join(dir, "pic.png")
	if err := os.WriteFile(png, pngHeader, 0o644); err != nil {
		t.Fatal(err)
	}
	txt := filepath.Join(dir, "skip.txt")
	if err := os.WriteFile(txt, []byte("not media"), 0o644); err != nil {
		t.Fatal(err)
	}

	req := makeCallToolRequest("ingest_files", map[string]interface{}{
		"paths": []interface{}{png, txt},
	})
	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}

	var outcomes []struct {
		Filename string `json:"filename"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &outcomes); err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("got %d outcomes, want 1 (text file skipped)", len(outcomes))
	}
	if outcomes[0].Filename != "pic.png" || outcomes[0].Status != "succeeded" {
		t.Errorf("outcome = %+v", outcomes[0])
	}
}

func TestMCPIngestFiles_NothingSupported(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpIngestFiles(deps)

	dir := t.TempDir()
	txt := filepath.Join(dir, "skip.txt")
	if err := os.WriteFile(txt, []byte("not media"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := handler(context.Background(), makeCallToolRequest("ingest_files", map[string]interface{}{
		"paths": []interface{}{txt},
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Error("expected IsError when nothing is supported")
	}
}

func TestMCPResourceRecent(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpResourceRecent(deps)

	// Ingest one file so the feed has content.
	dir := t.TempDir()
	png := filepath.Join(dir, "pic.png")
	if err := os.WriteFile(png, pngHeader, 0o644); err != nil {
		t.Fatal(err)
	}
	deps.Session.Uploads.Enqueue([]string{png})
	deps.Session.Uploads.RunBatch(context.Background())

	contents, err := handler(context.Background(), makeReadResourceRequest("mmx://recent"))
	if err != nil {
		t.Fatalf("resource error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("got %d contents", len(contents))
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("contents[0] is %T", contents[0])
	}
	if !strings.Contains(text.Text, "pic.png") {
		t.Errorf("resource text = %s", text.Text)
	}
}

func TestMCPResourceStatus(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpResourceStatus(deps)

	contents, err := handler(context.Background(), makeReadResourceRequest("mmx://status"))
	if err != nil {
		t.Fatalf("resource error: %v", err)
	}
	text := contents[0].(mcp.TextResourceContents)
	var info backend.StatusInfo
	if err := json.Unmarshal([]byte(text.Text), &info); err != nil {
		t.Fatal(err)
	}
	if info.IndexedItems != 3 || !info.CrossModalEnabled {
		t.Errorf("info = %+v", info)
	}

	// Without a status fetcher the resource fails cleanly.
	if _, err := mcpResourceStatus(MCPDeps{Session: deps.Session})(context.Background(), makeReadResourceRequest("mmx://status")); err == nil {
		t.Error("expected error with nil status fetcher")
	}
}
