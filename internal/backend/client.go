// Package backend implements the HTTP client for the embedding/indexing
// service. It covers the full wire contract: collection management, text and
// media similarity search, file ingest, recent activity, and system status.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// APIError is an application-level error reported by the backend, either as
// an "error" field in an otherwise successful body or as a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
	}
	return e.Message
}

// Client communicates with the indexing backend over HTTP.
type Client struct {
	baseURL    string
	staticBase string
	httpClient *http.Client
}

// New creates a Client targeting the given backend base URL. staticBase is
// the asset host used to resolve media previews; if empty, the backend base
// URL is used. A zero timeout disables the client-side deadline.
func New(baseURL, staticBase string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if staticBase == "" {
		staticBase = baseURL
	}
	return &Client{
		baseURL:    baseURL,
		staticBase: strings.TrimRight(staticBase, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// StaticURL resolves a result's file path or file URL against the configured
// static asset base. The backend reports paths like "static/foo.jpg" or
// "/static/foo.jpg"; the caller never interprets file bytes itself.
func (c *Client) StaticURL(p string) string {
	p = strings.TrimPrefix(p, "/")
	if !strings.HasPrefix(p, "static/") {
		p = "static/" + p
	}
	return c.staticBase + "/" + p
}

// parseTime accepts both RFC 3339 and the backend's bare ISO timestamps.
func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

type collectionWire struct {
	Name        string `json:"db_name"`
	ItemCount   int    `json:"ntotal"`
	LastUpdated string `json:"last_updated"`
}

// ListCollections fetches the set of known collections.
func (c *Client) ListCollections(ctx context.Context) ([]Collection, error) {
	var wire []collectionWire
	if err := c.getJSON(ctx, "/list_databases", &wire); err != nil {
		return nil, err
	}
	cols := make([]Collection, len(wire))
	for i, w := range wire {
		cols[i] = Collection{
			Name:        w.Name,
			ItemCount:   w.ItemCount,
			LastUpdated: parseTime(w.LastUpdated),
		}
	}
	return cols, nil
}

// CreateCollection asks the backend to create a new named collection. A
// rejection (duplicate name, invalid name) is returned as *APIError carrying
// the backend-provided message.
func (c *Client) CreateCollection(ctx context.Context, name string) error {
	body := map[string]string{"db_name": name}
	var result struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := c.postJSON(ctx, "/create_database", body, &result); err != nil {
		return err
	}
	if !result.Success {
		return &APIError{Message: result.Message}
	}
	return nil
}

type searchResponse struct {
	Results []ResultItem `json:"results"`
	Error   string       `json:"error"`
}

// SearchText runs a text similarity query against the given collection.
func (c *Client) SearchText(ctx context.Context, text string, numResults int, collection string) ([]ResultItem, error) {
	body := map[string]any{
		"text":        text,
		"num_results": numResults,
		"db_name":     collection,
	}
	var result searchResponse
	if err := c.postJSON(ctx, "/search_text", body, &result); err != nil {
		return nil, err
	}
	if result.Error != "" {
		return nil, &APIError{Message: result.Error}
	}
	return result.Results, nil
}

// SearchMedia runs a query-by-example search with an image or audio file as
// the query payload. The file is sent as a multipart submission alongside the
// requested result count and target collection.
func (c *Client) SearchMedia(ctx context.Context, kind FileType, filename string, content io.Reader, numResults int, collection string) ([]ResultItem, error) {
	endpoint := "/search_image"
	if kind == FileTypeAudio {
		endpoint = "/search_audio"
	}

	fields := map[string]string{
		"db_name":     collection,
		"num_results": strconv.Itoa(numResults),
	}
	var result searchResponse
	if err := c.postMultipart(ctx, endpoint, string(kind), filename, content, fields, &result); err != nil {
		return nil, err
	}
	if result.Error != "" {
		return nil, &APIError{Message: result.Error}
	}
	return result.Results, nil
}

type ingestResponse struct {
	Success  bool   `json:"success"`
	Error    string `json:"error"`
	Filename string `json:"filename"`
	FileURL  string `json:"file_url"`
	Status   string `json:"status"`
}

// IngestFile submits one media file to the indexing pipeline of the given
// collection.
func (c *Client) IngestFile(ctx context.Context, filename string, content io.Reader, declaredType FileType, collection, description string) (IngestResult, error) {
	fields := map[string]string{
		"db_name":     collection,
		"type":        string(declaredType),
		"description": description,
	}
	var result ingestResponse
	if err := c.postMultipart(ctx, "/upload_file", "file", filename, content, fields, &result); err != nil {
		return IngestResult{}, err
	}
	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = "upload rejected"
		}
		return IngestResult{}, &APIError{Message: msg}
	}
	return IngestResult{
		Filename: result.Filename,
		FileURL:  result.FileURL,
		Status:   result.Status,
	}, nil
}

type uploadRecordWire struct {
	Filename  string   `json:"filename"`
	Type      FileType `json:"type"`
	FileURL   string   `json:"file_url"`
	ModelUsed string   `json:"model_used"`
	AddedAt   string   `json:"added_at"`
}

// RecentUploads fetches the backend's short history of recently ingested
// items, most recent first.
func (c *Client) RecentUploads(ctx context.Context) ([]UploadRecord, error) {
	var result struct {
		RecentUploads []uploadRecordWire `json:"recent_uploads"`
	}
	if err := c.getJSON(ctx, "/recent_uploads", &result); err != nil {
		return nil, err
	}
	records := make([]UploadRecord, len(result.RecentUploads))
	for i, w := range result.RecentUploads {
		records[i] = UploadRecord{
			Filename:  w.Filename,
			Type:      w.Type,
			FileURL:   w.FileURL,
			ModelUsed: w.ModelUsed,
			AddedAt:   parseTime(w.AddedAt),
		}
	}
	return records, nil
}

// Status fetches the backend's system status report.
func (c *Client) Status(ctx context.Context) (StatusInfo, error) {
	var wire struct {
		IndexedItems int `json:"indexed_items"`
		CrossModal   struct {
			Enabled bool `json:"enabled"`
		} `json:"cross_modal_search"`
	}
	if err := c.getJSON(ctx, "/status", &wire); err != nil {
		return StatusInfo{}, err
	}
	return StatusInfo{
		IndexedItems:      wire.IndexedItems,
		CrossModalEnabled: wire.CrossModal.Enabled,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshalling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

func (c *Client) postMultipart(ctx context.Context, path, fileField, filename string, content io.Reader, fields map[string]string, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile(fileField, filename)
	if err != nil {
		return fmt.Errorf("building multipart request: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("reading %s: %w", filename, err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("building multipart request: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if readErr != nil {
			return &APIError{StatusCode: resp.StatusCode, Message: "unreadable response body"}
		}
		var body struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		msg := strings.TrimSpace(string(data))
		if err := json.Unmarshal(data, &body); err == nil {
			if body.Error != "" {
				msg = body.Error
			} else if body.Message != "" {
				msg = body.Message
			}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
