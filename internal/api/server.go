// Package api provides REST API handlers for decoding and querying entries.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fidde/segment_decoder/internal/analyzer"
	"github.com/fidde/segment_decoder/internal/parser"
	"github.com/fidde/segment_decoder/internal/storage"
	"github.com/fidde/segment_decoder/internal/storage/sessions"
	"github.com/fidde/segment_decoder/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBatchBytes bounds the body of a batch decode request.
const maxBatchBytes = 16 << 20

// Server is the REST API server.
type Server struct {
	store    storage.Storage
	entries  *analyzer.EntryAnalyzer
	sessions *SessionHandler
	logger   *slog.Logger
	router   *chi.Mux
	server   *http.Server
}

// Options configures optional server dependencies.
type Options struct {
	// Analyzer decodes submitted entries; nil uses one worker per CPU.
	Analyzer *analyzer.EntryAnalyzer

	// Sessions enables the /sessions routes when set.
	Sessions *sessions.Store

	Logger *slog.Logger
}

// PaginationParams contains pagination parameters from query string.
type PaginationParams struct {
	Limit  int
	Offset int
}

// PaginatedResponse wraps a paginated response with metadata.
type PaginatedResponse struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
}

// parsePaginationParams extracts pagination parameters from request.
// Defaults: limit=100, offset=0, max_limit=1000
func parsePaginationParams(r *http.Request) PaginationParams {
	const (
		defaultLimit = 100
		maxLimit     = 1000
	)

	limit := defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			if limit > maxLimit {
				limit = maxLimit
			}
		}
	}

	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return PaginationParams{
		Limit:  limit,
		Offset: offset,
	}
}

// paginateSlice applies pagination to a slice.
func paginateSlice[T any](items []T, params PaginationParams) ([]T, PaginatedResponse) {
	total := len(items)
	start := params.Offset
	end := start + params.Limit

	if start >= total {
		return []T{}, PaginatedResponse{
			Data:    []T{},
			Total:   total,
			Limit:   params.Limit,
			Offset:  params.Offset,
			HasMore: false,
		}
	}

	if end > total {
		end = total
	}

	page := items[start:end]

	return page, PaginatedResponse{
		Data:    page,
		Total:   total,
		Limit:   params.Limit,
		Offset:  params.Offset,
		HasMore: end < total,
	}
}

// NewServer creates a new API server.
func NewServer(addr string, store storage.Storage, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Analyzer == nil {
		opts.Analyzer = analyzer.NewEntryAnalyzer(0)
	}

	s := &Server{
		store:   store,
		entries: opts.Analyzer,
		logger:  opts.Logger,
		router:  chi.NewRouter(),
	}
	if opts.Sessions != nil {
		s.sessions = NewSessionHandler(opts.Sessions, store)
	}

	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.HandleHealth)

		// Decoding
		r.Post("/decode", s.decodeLine)
		r.Post("/entries", s.decodeBatch)

		// Stored results
		r.Get("/entries", s.listEntries)
		r.Get("/entries/{id}", s.getEntry)
		r.Get("/summary", s.getSummary)

		// Sessions
		if s.sessions != nil {
			r.Get("/sessions", s.sessions.ListSessions)
			r.Post("/sessions", s.sessions.CreateSession)
			r.Get("/sessions/{name}", s.sessions.GetSessionMetadata)
			r.Delete("/sessions/{name}", s.sessions.DeleteSession)
			r.Post("/sessions/{name}/load", s.sessions.LoadSession)
		}

		// Admin endpoints
		r.Post("/admin/clear", s.clearAllData)
	})

	s.router.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the API server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// DecodeRequest is the body of POST /api/v1/decode.
type DecodeRequest struct {
	Line string `json:"line"`
}

// decodeLine decodes and stores a single entry.
// A malformed or undecodable entry is stored as failed and answered with 400.
// POST /api/v1/decode
func (s *Server) decodeLine(w http.ResponseWriter, r *http.Request) {
	var req DecodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	text := strings.TrimSpace(req.Line)
	if text == "" {
		respondError(w, http.StatusBadRequest, "line is required")
		return
	}

	entry, err := parser.ParseEntry(text)
	if err != nil {
		err = &parser.LineError{Line: 1, Text: text, Err: err}
	}
	result := s.entries.AnalyzeLine(parser.Line{Number: 1, Text: text, Entry: entry, Err: err}, models.SourceAPI)

	if err := s.store.StoreEntry(r.Context(), result); err != nil {
		s.logger.Error("failed to store entry", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to store entry: "+err.Error())
		return
	}

	status := http.StatusOK
	if !result.Decoded() {
		status = http.StatusBadRequest
	}
	respondJSON(w, status, result)
}

// BatchResponse is the answer to a batch decode.
type BatchResponse struct {
	Summary models.Summary         `json:"summary"`
	Failed  []*models.DecodedEntry `json:"failed"`
}

// decodeBatch decodes a text/plain body holding one entry per line.
// POST /api/v1/entries
func (s *Server) decodeBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	lines, err := parser.ReadLines(http.MaxBytesReader(w, r.Body, maxBatchBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to read entries: "+err.Error())
		return
	}

	results, err := s.entries.AnalyzeLines(ctx, lines, models.SourceAPI)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "Decoding interrupted: "+err.Error())
		return
	}

	if err := s.store.StoreEntries(ctx, results); err != nil {
		s.logger.Error("failed to store entries", "error", err, "count", len(results))
		respondError(w, http.StatusInternalServerError, "Failed to store entries: "+err.Error())
		return
	}

	resp := BatchResponse{
		Summary: models.Summarize(results),
		Failed:  []*models.DecodedEntry{},
	}
	for _, e := range results {
		if !e.Decoded() {
			resp.Failed = append(resp.Failed, e)
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// listEntries returns stored entries in insertion order.
// Supports ?status=decoded|failed, ?source=, and pagination via ?limit=N&offset=M.
// GET /api/v1/entries
func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	filter := models.EntryFilter{
		Status: models.EntryStatus(r.URL.Query().Get("status")),
		Source: r.URL.Query().Get("source"),
	}
	switch filter.Status {
	case "", models.StatusDecoded, models.StatusFailed:
	default:
		respondError(w, http.StatusBadRequest, "status must be decoded or failed")
		return
	}

	entries, err := s.store.ListEntries(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	_, response := paginateSlice(entries, parsePaginationParams(r))
	respondJSON(w, http.StatusOK, response)
}

// getEntry returns a stored entry by ID.
// GET /api/v1/entries/{id}
func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.store.GetEntry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, models.ErrEntryNotFound) {
			respondError(w, http.StatusNotFound, "entry not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, entry)
}

// getSummary returns the aggregate over all stored entries.
// GET /api/v1/summary
func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.store.Summary(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// clearAllData clears all data from the storage.
// POST /api/v1/admin/clear
func (s *Server) clearAllData(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(r.Context()); err != nil {
		s.logger.Error("failed to clear storage", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to clear data")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "All data cleared successfully",
	})
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
