package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"agentdeck/internal/agent"
	"agentdeck/internal/store"
)

// CreateMemoryRequest is the body for POST /api/memory.
type CreateMemoryRequest struct {
	Scope   string `json:"scope"`
	Content string `json:"content"`
}

func (s *Server) handleCreateMemory(w http.ResponseWriter, r *http.Request) {
	var req CreateMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	if req.Scope == "" {
		req.Scope = agent.MemoryScopeGlobal
	}
	note, err := s.store.CreateMemoryNote(req.Scope, req.Content)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (s *Server) handleListMemory(w http.ResponseWriter, r *http.Request) {
	notes, err := s.store.ListMemoryNotes()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if notes == nil {
		notes = []agent.MemoryNote{}
	}
	writeJSON(w, http.StatusOK, notes)
}

// ToggleMemoryRequest is the body for POST /api/memory/{id}/toggle.
type ToggleMemoryRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleToggleMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req ToggleMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	if err := s.store.SetMemoryNoteEnabled(id, req.Enabled); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeNotFound(w, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, "updated")
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteMemoryNote(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeNotFound(w, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, "deleted")
}
