package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"agentdeck/internal/agent"
	"agentdeck/internal/config"
	"agentdeck/internal/store"
)

// Server holds all dependencies for the HTTP server.
type Server struct {
	config  *config.Config
	store   *store.Store
	service *agent.Service
	hub     *Hub
}

// NewServer creates a new server with all dependencies.
func NewServer(cfg *config.Config, st *store.Store) *Server {
	hub := NewHub()
	sup := agent.NewSupervisor(cfg.TurnTimeout)

	providers := map[string]agent.Provider{
		agent.ProviderClaude: agent.NewClaudeProvider(cfg.ClaudeBin, sup),
		agent.ProviderCodex:  agent.NewCodexProvider(cfg.CodexBin, sup),
		agent.ProviderGemini: agent.NewGeminiProvider(cfg.GeminiBin, sup),
	}
	service := agent.NewService(providers, st, hub.BroadcastStatus)

	return &Server{
		config:  cfg,
		store:   st,
		service: service,
		hub:     hub,
	}
}

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(srv *Server) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(RecovererMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   srv.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(AuthMiddleware(srv.config.Token))

	// Conversation routes
	r.Get("/api/conversations", srv.handleListConversations)
	r.Post("/api/conversations", srv.handleCreateConversation)
	r.Get("/api/conversations/{id}", srv.handleGetConversation)
	r.Delete("/api/conversations/{id}", srv.handleDeleteConversation)
	r.Post("/api/conversations/{id}/archive", srv.handleArchiveConversation)
	r.Post("/api/conversations/{id}/chat", srv.handleChatStream)
	r.Post("/api/conversations/{id}/cancel", srv.handleCancel)
	r.Get("/api/conversations/{id}/active", srv.handleIsActive)
	r.Post("/api/conversations/{id}/summary", srv.handleGenerateSummary)

	// Provider routes
	r.Get("/api/providers", srv.handleListProviders)

	// Memory note routes
	r.Get("/api/memory", srv.handleListMemory)
	r.Post("/api/memory", srv.handleCreateMemory)
	r.Post("/api/memory/{id}/toggle", srv.handleToggleMemory)
	r.Delete("/api/memory/{id}", srv.handleDeleteMemory)

	// Status broadcast
	r.Handle("/api/ws", srv.hub.Handler())

	r.Get("/api/health", srv.handleHealth)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"ws_clients": s.hub.ConnCount(),
	})
}
