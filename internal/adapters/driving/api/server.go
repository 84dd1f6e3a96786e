// Package api exposes the engine to the UI surface over a localhost-only
// HTTP JSON transport. The UI calls the ingest, search, list, and delete
// entry points synchronously and subscribes to items_updated events over
// a server-sent event stream; it never reads vault files directly.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
	"github.com/stashdrop-labs/stashdrop/internal/core/ports/driving"
	"github.com/stashdrop-labs/stashdrop/internal/logger"
)

// Server is the localhost HTTP front of the engine.
type Server struct {
	mu       sync.Mutex
	engine   driving.Engine
	port     int
	server   *http.Server
	listener net.Listener
}

// NewServer creates a server for the engine. A port of 0 picks a free
// one; the bound port is available from Port after Start.
func NewServer(port int, engine driving.Engine) *Server {
	return &Server{
		engine: engine,
		port:   port,
	}
}

// Start binds 127.0.0.1 and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.server = &http.Server{
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
	}

	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		s.port = tcpAddr.Port
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server: %v", err)
		}
	}()

	logger.Info("api listening on 127.0.0.1:%d", s.port)
	return nil
}

// Port returns the bound port.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// Stop shuts the server down.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}
	return s.server.Close()
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /ingest/text", s.handleIngestText)
	mux.HandleFunc("POST /ingest/link", s.handleIngestLink)
	mux.HandleFunc("POST /ingest/file", s.handleIngestFile)
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("GET /items", s.handleList)
	mux.HandleFunc("GET /items/{id}", s.handleGet)
	mux.HandleFunc("DELETE /items/{id}", s.handleDelete)
	mux.HandleFunc("GET /events", s.handleEvents)
	return mux
}

// ==================== Handlers ====================

type ingestTextRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleIngestText(w http.ResponseWriter, r *http.Request) {
	var req ingestTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: bad request body", domain.ErrInvalidInput))
		return
	}

	item, err := s.engine.IngestText(r.Context(), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, itemPayload(item))
}

type ingestLinkRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

func (s *Server) handleIngestLink(w http.ResponseWriter, r *http.Request) {
	var req ingestLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: bad request body", domain.ErrInvalidInput))
		return
	}

	item, err := s.engine.IngestLink(r.Context(), req.URL, req.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, itemPayload(item))
}

type ingestFileRequest struct {
	Path     string `json:"path,omitempty"`
	Filename string `json:"filename,omitempty"`
	// Data carries the raw bytes (base64 in JSON) when the host cannot
	// supply a path for a dropped file.
	Data []byte `json:"data,omitempty"`
}

func (s *Server) handleIngestFile(w http.ResponseWriter, r *http.Request) {
	var req ingestFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: bad request body", domain.ErrInvalidInput))
		return
	}

	var item *domain.Item
	var err error
	switch {
	case req.Path != "":
		item, err = s.engine.IngestFile(r.Context(), req.Path)
	case req.Filename != "":
		item, err = s.engine.IngestBytes(r.Context(), req.Filename, req.Data)
	default:
		err = fmt.Errorf("%w: need a path or filename", domain.ErrInvalidInput)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, itemPayload(item))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	k := 10
	if raw := r.URL.Query().Get("k"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			k = n
		}
	}

	results, err := s.engine.Search(r.Context(), query, k)
	if err != nil {
		writeError(w, err)
		return
	}

	payload := make([]map[string]any, len(results))
	for i, res := range results {
		payload[i] = itemPayload(&res.Item)
		payload[i]["similarity"] = res.Similarity
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": payload})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	filter := domain.ListFilter{
		Kind:     domain.Kind(r.URL.Query().Get("kind")),
		Category: domain.Category(r.URL.Query().Get("category")),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			filter.Limit = n
		}
	}

	items, err := s.engine.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	payload := make([]map[string]any, len(items))
	for i := range items {
		payload[i] = itemPayload(&items[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": payload})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	item, err := s.engine.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemPayload(item))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEvents streams items_updated notifications as server-sent
// events until the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := s.engine.Subscribe()
	for {
		select {
		case <-r.Context().Done():
			return
		case n, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", n.Type, data)
			flusher.Flush()
		}
	}
}

// ==================== Helpers ====================

// itemPayload shapes an item for the wire.
func itemPayload(item *domain.Item) map[string]any {
	return map[string]any{
		"id":              item.ID,
		"kind":            item.Kind,
		"category":        item.Category,
		"title":           item.Title,
		"content":         item.Content,
		"blob_ref":        item.BlobRef,
		"hash":            item.Hash,
		"mime_type":       item.MIMEType,
		"damaged":         item.Damaged,
		"metadata":        item.Metadata,
		"searchable_text": item.SearchableText,
		"created_at":      item.CreatedAt,
		"updated_at":      item.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warn("api encode: %v", err)
	}
}

// writeError maps the error taxonomy onto HTTP statuses with a
// readable reason and no stack traces.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrFileRejected):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateID):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"error":  err.Error(),
		"reason": domain.Reason(err),
	})
}
