package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"agentdeck/internal/agent"
	"agentdeck/internal/store"
)

// CreateConversationRequest is the body for POST /api/conversations.
type CreateConversationRequest struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	WorkingDir string `json:"working_dir"`
	Mode       string `json:"mode"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	if req.Provider == "" {
		req.Provider = s.config.DefaultProvider
	}
	if req.WorkingDir == "" {
		req.WorkingDir = s.config.DefaultWorkingDir
	}

	mode := agent.ExecMode(req.Mode)
	switch mode {
	case "", agent.ModeSandboxed, agent.ModeWrite:
	default:
		writeBadRequest(w, "Invalid mode")
		return
	}

	conv, err := s.store.CreateConversation(req.Provider, req.Model, req.WorkingDir, mode)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("archived") == "true"
	convs, err := s.store.ListConversations(includeArchived)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if convs == nil {
		convs = []*agent.Conversation{}
	}
	writeJSON(w, http.StatusOK, convs)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadConversation(w, r)
	if !ok {
		return
	}
	if s.service.IsActive(conv) {
		conv.Status = agent.StatusThinking
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteConversation(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeNotFound(w, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, "deleted")
}

// ArchiveRequest is the body for POST /api/conversations/{id}/archive.
type ArchiveRequest struct {
	Archived bool `json:"archived"`
}

func (s *Server) handleArchiveConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req ArchiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	if err := s.store.SetArchived(id, req.Archived); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeNotFound(w, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, "updated")
}

func (s *Server) handleGenerateSummary(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadConversation(w, r)
	if !ok {
		return
	}
	title, err := s.service.GenerateSummary(r.Context(), conv)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"title": title})
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Providers())
}

// loadConversation resolves the {id} route param, writing the error
// response itself when the conversation cannot be loaded.
func (s *Server) loadConversation(w http.ResponseWriter, r *http.Request) (*agent.Conversation, bool) {
	id := chi.URLParam(r, "id")
	conv, err := s.store.GetConversation(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeNotFound(w, "Conversation not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return conv, true
}
