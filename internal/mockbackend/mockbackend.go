// Package mockbackend is an in-memory implementation of the indexing
// backend's wire contract. It exists for local development, demos, and
// CLI-level tests; similarity scores are synthetic and deterministic.
package mockbackend

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

type indexedItem struct {
	Filename string
	FileType string
	Content  []byte
	AddedAt  time.Time
}

type collection struct {
	Name        string
	Items       []indexedItem
	LastUpdated time.Time
}

// Server holds the in-memory index state behind the HTTP handler.
type Server struct {
	mu          sync.Mutex
	collections map[string]*collection
	recent      []recentUpload
	logger      *slog.Logger
}

type recentUpload struct {
	Filename  string `json:"filename"`
	Type      string `json:"type"`
	FileURL   string `json:"file_url"`
	ModelUsed string `json:"model_used"`
	AddedAt   string `json:"added_at"`
}

// New creates an empty Server.
func New() *Server {
	return &Server{
		collections: make(map[string]*collection),
		logger:      slog.Default(),
	}
}

// Handler returns the HTTP handler implementing the backend contract.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/list_databases", s.handleListDatabases)
	r.Post("/create_database", s.handleCreateDatabase)
	r.Post("/search_text", s.handleSearchText)
	r.Post("/search_image", s.handleSearchMedia)
	r.Post("/search_audio", s.handleSearchMedia)
	r.Post("/upload_file", s.handleUploadFile)
	r.Get("/recent_uploads", s.handleRecentUploads)
	r.Get("/status", s.handleStatus)
	r.Get("/static/{filename}", s.handleStatic)

	return r
}

// Seed creates a collection with pre-indexed items, for tests and demos.
func (s *Server) Seed(name string, items ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col := s.ensureLocked(name)
	for _, fn := range items {
		kind := "image"
		if len(fn) > 4 && (fn[len(fn)-4:] == ".mp3" || fn[len(fn)-4:] == ".wav") {
			kind = "audio"
		}
		col.Items = append(col.Items, indexedItem{Filename: fn, FileType: kind, AddedAt: time.Now().UTC()})
	}
	col.LastUpdated = time.Now().UTC()
}

func (s *Server) ensureLocked(name string) *collection {
	if col, ok := s.collections[name]; ok {
		return col
	}
	col := &collection{Name: name, LastUpdated: time.Now().UTC()}
	s.collections[name] = col
	return col
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleListDatabases(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)

	type dbInfo struct {
		Name        string `json:"db_name"`
		ItemCount   int    `json:"ntotal"`
		LastUpdated string `json:"last_updated"`
	}
	out := make([]dbInfo, len(names))
	for i, name := range names {
		col := s.collections[name]
		out[i] = dbInfo{
			Name:        col.Name,
			ItemCount:   len(col.Items),
			LastUpdated: col.LastUpdated.Format(time.RFC3339),
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateDatabase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"db_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "db_name is required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[req.Name]; ok {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": fmt.Sprintf("database %q already exists", req.Name)})
		return
	}
	s.ensureLocked(req.Name)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type searchResult struct {
	Filename        string  `json:"filename"`
	FileType        string  `json:"file_type"`
	SimilarityScore float64 `json:"similarity_score"`
	Rank            int     `json:"rank"`
	SourcePath      string  `json:"file_path"`
}

// rankedResults returns up to n items in insertion order with synthetic
// descending scores.
func (s *Server) rankedResults(dbName string, n int) ([]searchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[dbName]
	if !ok {
		return nil, fmt.Errorf("unknown database %q", dbName)
	}
	if n <= 0 {
		n = 5
	}
	if n > len(col.Items) {
		n = len(col.Items)
	}
	out := make([]searchResult, n)
	for i := 0; i < n; i++ {
		out[i] = searchResult{
			Filename:        col.Items[i].Filename,
			FileType:        col.Items[i].FileType,
			SimilarityScore: 1.0 - float64(i)*0.07,
			Rank:            i + 1,
			SourcePath:      "static/" + col.Items[i].Filename,
		}
	}
	return out, nil
}

func (s *Server) handleSearchText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text       string `json:"text"`
		NumResults int    `json:"num_results"`
		DBName     string `json:"db_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusOK, map[string]string{"error": "No text provided"})
		return
	}

	results, err := s.rankedResults(req.DBName, req.NumResults)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleSearchMedia(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	field := "image"
	if r.URL.Path == "/search_audio" {
		field = "audio"
	}
	file, _, err := r.FormFile(field)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"error": fmt.Sprintf("No %s uploaded", field)})
		return
	}
	file.Close()

	n := 5
	fmt.Sscanf(r.FormValue("num_results"), "%d", &n)
	results, err := s.rankedResults(r.FormValue("db_name"), n)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "No file uploaded"})
		return
	}
	defer file.Close()

	declaredType := r.FormValue("type")
	if declaredType != "image" && declaredType != "audio" {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": fmt.Sprintf("unsupported file type %q", declaredType)})
		return
	}

	content, err := io.ReadAll(io.LimitReader(file, 64<<20))
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "unreadable file"})
		return
	}

	dbName := r.FormValue("db_name")

	s.mu.Lock()
	col, ok := s.collections[dbName]
	if !ok {
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": fmt.Sprintf("unknown database %q", dbName)})
		return
	}
	now := time.Now().UTC()
	col.Items = append(col.Items, indexedItem{
		Filename: header.Filename,
		FileType: declaredType,
		Content:  content,
		AddedAt:  now,
	})
	col.LastUpdated = now
	s.recent = append([]recentUpload{{
		Filename:  header.Filename,
		Type:      declaredType,
		FileURL:   "/static/" + header.Filename,
		ModelUsed: "mock-embedder",
		AddedAt:   now.Format(time.RFC3339),
	}}, s.recent...)
	s.mu.Unlock()

	s.logger.Info("indexed file", "db", dbName, "file", header.Filename, "type", declaredType)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"filename": header.Filename,
		"file_url": "/static/" + header.Filename,
		"status":   "indexed",
	})
}

func (s *Server) handleRecentUploads(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := append([]recentUpload(nil), s.recent...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"recent_uploads": out})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	total := 0
	for _, col := range s.collections {
		total += len(col.Items)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"indexed_items":      total,
		"cross_modal_search": map[string]bool{"enabled": true},
	})
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, col := range s.collections {
		for _, item := range col.Items {
			if item.Filename == filename {
				w.Write(item.Content)
				return
			}
		}
	}
	http.NotFound(w, r)
}
