package api

import (
	"encoding/json"
	"net/http"

	"agentdeck/internal/agent"
)

// ChatRequest is the body for POST /api/conversations/{id}/chat.
type ChatRequest struct {
	Text        string             `json:"text"`
	Attachments []agent.Attachment `json:"attachments,omitempty"`
}

// handleChatStream runs one turn and streams its events as NDJSON.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadConversation(w, r)
	if !ok {
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	if req.Text == "" {
		writeBadRequest(w, "Text is required")
		return
	}

	memory, err := s.store.EnabledMemoryNotes()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	run, err := s.service.ChatStream(r.Context(), conv, agent.ChatRequest{
		Text:        req.Text,
		Attachments: req.Attachments,
		Memory:      memory,
	})
	if err != nil {
		if agent.IsTurnActive(err) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		if agent.IsProviderUnavailable(err) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeBadRequest(w, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeBadRequest(w, "Streaming not supported")
		return
	}

	for event := range run.Events {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		if _, err := w.Write(data); err != nil {
			// Client went away; keep draining so the turn's close handler
			// runs and persists what it can.
			go func() {
				for range run.Events {
				}
			}()
			return
		}
		if _, err := w.Write([]byte("\n")); err != nil {
			go func() {
				for range run.Events {
				}
			}()
			return
		}
		flusher.Flush()
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadConversation(w, r)
	if !ok {
		return
	}
	if !s.service.Cancel(conv) {
		writeNotFound(w, "No active turn for conversation")
		return
	}
	writeSuccess(w, "cancel signal sent")
}

func (s *Server) handleIsActive(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.loadConversation(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": s.service.IsActive(conv)})
}
