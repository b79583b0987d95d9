package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"qwery/internal/domain"
	"qwery/internal/port"
	"qwery/internal/usecase"
)

// Server exposes the retrieval core over HTTP.
type Server struct {
	store        port.DocumentStore
	embedder     port.Embedder
	engine       *usecase.Engine
	composer     *usecase.Composer
	defaultLimit int
	threshold    float64
	logger       *slog.Logger
	handler      http.Handler
}

func New(
	store port.DocumentStore,
	embedder port.Embedder,
	engine *usecase.Engine,
	composer *usecase.Composer,
	defaultLimit int,
	threshold float64,
	logger *slog.Logger,
) *Server {
	if defaultLimit <= 0 {
		defaultLimit = 5
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		store:        store,
		embedder:     embedder,
		engine:       engine,
		composer:     composer,
		defaultLimit: defaultLimit,
		threshold:    threshold,
		logger:       logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("POST /api/documents", s.handleAddDocument)
	mux.HandleFunc("GET /api/documents", s.handleListDocuments)
	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("POST /api/ask", s.handleAsk)

	s.handler = withRequestID(withLogging(logger, mux))
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "qwery"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Count(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type addDocumentRequest struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	var req addDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	content := usecase.Normalize(req.Content)
	if content == "" {
		writeError(w, http.StatusBadRequest, "content must not be empty")
		return
	}

	vector, err := s.embedder.Embed(r.Context(), content)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	ids, err := s.store.InsertBatch(r.Context(), []domain.Document{{
		Content:   content,
		Metadata:  req.Metadata,
		Embedding: vector,
	}})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": ids[0], "status": "success"})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	offset := queryInt(r, "offset", 0)

	docs, err := s.store.List(r.Context(), limit, offset)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	type docItem struct {
		ID        uint64         `json:"id"`
		Content   string         `json:"content"`
		Metadata  map[string]any `json:"metadata,omitempty"`
		CreatedAt string         `json:"created_at"`
	}
	items := make([]docItem, 0, len(docs))
	for _, d := range docs {
		items = append(items, docItem{
			ID:        d.ID,
			Content:   d.Content,
			Metadata:  d.Metadata,
			CreatedAt: d.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": items})
}

type searchRequest struct {
	Query     string         `json:"query"`
	Limit     int            `json:"limit"`
	Threshold *float64       `json:"threshold,omitempty"`
	Filter    map[string]any `json:"filter,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	limit := req.Limit
	if limit == 0 {
		limit = s.defaultLimit
	}
	threshold := s.threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	results, err := s.engine.Retrieve(r.Context(), req.Query, limit, threshold, port.Filter(req.Filter))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	type searchItem struct {
		ID       uint64         `json:"id"`
		Content  string         `json:"content"`
		Metadata map[string]any `json:"metadata,omitempty"`
		Score    float64        `json:"score"`
	}
	items := make([]searchItem, 0, len(results))
	for _, res := range results {
		items = append(items, searchItem{
			ID:       res.Document.ID,
			Content:  res.Document.Content,
			Metadata: res.Document.Metadata,
			Score:    res.Score,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": items})
}

type askRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	limit := req.Limit
	if limit == 0 {
		limit = s.defaultLimit
	}

	results, err := s.engine.Retrieve(r.Context(), req.Query, limit, s.threshold, nil)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	answer, err := s.composer.Compose(r.Context(), req.Query, results, 0)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

// writeDomainError maps the error taxonomy onto HTTP status codes,
// keeping "could not search" distinguishable from "no results" (the
// latter is a 200 with an empty list).
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var extErr *domain.ExternalServiceError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &extErr):
		s.logger.Error("external service failure", "request_id", requestIDFrom(r.Context()), "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("internal error", "request_id", requestIDFrom(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
