package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/fidde/segment_decoder/internal/storage/sessions"
	"github.com/fidde/segment_decoder/pkg/models"
	"github.com/go-chi/chi/v5"
)

// StoreAccessor provides read/write access to the entry store.
type StoreAccessor interface {
	ListEntries(ctx context.Context, filter models.EntryFilter) ([]*models.DecodedEntry, error)
	StoreEntries(ctx context.Context, entries []*models.DecodedEntry) error
	Clear(ctx context.Context) error
}

// SessionHandler handles session-related API requests.
type SessionHandler struct {
	store       *sessions.Store
	serializer  *sessions.Serializer
	storeAccess StoreAccessor
}

// NewSessionHandler creates a session handler backed by the entry store.
func NewSessionHandler(sessionStore *sessions.Store, storeAccess StoreAccessor) *SessionHandler {
	return &SessionHandler{
		store:       sessionStore,
		serializer:  sessions.NewSerializer(),
		storeAccess: storeAccess,
	}
}

// ListSessions returns metadata for all saved sessions.
// GET /api/v1/sessions
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessionList, err := h.store.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list sessions: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessionList,
		"total":    len(sessionList),
	})
}

// GetSessionMetadata returns metadata for a specific session.
// GET /api/v1/sessions/{name}
func (h *SessionHandler) GetSessionMetadata(w http.ResponseWriter, r *http.Request) {
	name, ok := sessionName(w, r)
	if !ok {
		return
	}

	meta, err := h.store.GetMetadata(r.Context(), name)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, "Session not found")
			return
		}
		if errors.Is(err, models.ErrInvalidSessionName) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to get session: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, meta)
}

// CreateSession saves the current entries as a new session.
// An existing session is only replaced with ?force=true.
// POST /api/v1/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var opts models.SessionSaveOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := opts.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	force := r.URL.Query().Get("force") == "true"
	if !force {
		exists, err := h.store.Exists(ctx, opts.Name)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to check session: "+err.Error())
			return
		}
		if exists {
			respondError(w, http.StatusConflict, "Session already exists. Use ?force=true to overwrite.")
			return
		}
	}

	session, err := h.serializer.CreateSession(ctx, h.storeAccess, opts)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create session: "+err.Error())
		return
	}

	if err := h.store.Save(ctx, session); err != nil {
		switch {
		case errors.Is(err, models.ErrTooManySessions):
			respondError(w, http.StatusConflict, "Maximum number of sessions reached")
		case errors.Is(err, models.ErrSessionTooLarge):
			respondError(w, http.StatusRequestEntityTooLarge, "Session exceeds size limit")
		default:
			respondError(w, http.StatusInternalServerError, "Failed to save session: "+err.Error())
		}
		return
	}

	meta, err := h.store.GetMetadata(ctx, session.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to read session metadata: "+err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, meta)
}

// DeleteSession removes a saved session.
// DELETE /api/v1/sessions/{name}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	name, ok := sessionName(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), name); err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, "Session not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to delete session: "+err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LoadSession loads a session into the entry store. Current entries are
// replaced unless ?merge=true is given.
// POST /api/v1/sessions/{name}/load
func (h *SessionHandler) LoadSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name, ok := sessionName(w, r)
	if !ok {
		return
	}

	session, err := h.store.Load(ctx, name)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, "Session not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to load session: "+err.Error())
		return
	}

	merge := r.URL.Query().Get("merge") == "true"
	result, err := h.serializer.LoadSession(ctx, session, h.storeAccess, merge)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load session data: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func sessionName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name, err := url.QueryUnescape(chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid session name encoding")
		return "", false
	}
	return name, true
}
