// internal/httpapi/server.go
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/user/chatpilot/internal/agent"
	"github.com/user/chatpilot/internal/autopilot"
	"github.com/user/chatpilot/internal/composer"
	"github.com/user/chatpilot/internal/scheduler"
	"github.com/user/chatpilot/internal/suggest"
	"github.com/user/chatpilot/internal/types"
)

// Server exposes the conversation engine to the inbox front end. Structural
// errors map to HTTP status codes (NotFound -> 404, InvalidSchedule -> 400);
// generation failures never surface here, they arrive as fallback content in
// the transcript.
type Server struct {
	convs       types.ConversationStore
	contacts    types.ContactStore
	registry    *agent.Registry
	coordinator *autopilot.Coordinator
	composer    *composer.Composer
	scheduler   *scheduler.Scheduler
	suggest     *suggest.Service
	router      chi.Router
}

// NewServer builds the router over the engine components.
func NewServer(
	convs types.ConversationStore,
	contacts types.ContactStore,
	registry *agent.Registry,
	coordinator *autopilot.Coordinator,
	cmp *composer.Composer,
	sched *scheduler.Scheduler,
	sugg *suggest.Service,
) *Server {
	s := &Server{
		convs:       convs,
		contacts:    contacts,
		registry:    registry,
		coordinator: coordinator,
		composer:    cmp,
		scheduler:   sched,
		suggest:     sugg,
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/conversations", s.handleListConversations)
		r.Route("/conversations/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetConversation)
			r.Post("/messages", s.handleSend)
			r.Post("/inbound", s.handleInbound)
			r.Post("/read", s.handleMarkRead)
			r.Post("/status", s.handleSetStatus)
			r.Get("/sentiment", s.handleSentiment)
			r.Get("/draft", s.handleGetDraft)
			r.Post("/draft", s.handleRequestDraft)
			r.Put("/draft", s.handleUpdateDraft)
		})

		r.Get("/agents", s.handleListAgents)
		r.Post("/agents", s.handleAddAgent)
		r.Post("/agents/{id}/active", s.handleSetActive)
		r.Post("/agents/{id}/autoreply", s.handleSetAutoReply)

		r.Get("/contacts", s.handleListContacts)
		r.Post("/contacts", s.handleAddContact)
	})

	s.router = r
	return s
}

// ServeHTTP delegates to the chi router, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, types.ErrInvalidSchedule):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.convs.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.convs.Get(r.Context(), types.ConversationID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// sendRequest is the JSON body for POST /api/conversations/{id}/messages.
type sendRequest struct {
	Text        string     `json:"text"`
	AgentID     string     `json:"agent_id,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	id := types.ConversationID(chi.URLParam(r, "id"))
	msg, err := s.composer.Send(r.Context(), id, req.Text, types.AgentID(req.AgentID), req.ScheduledAt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// inboundRequest is the JSON body for POST /api/conversations/{id}/inbound.
type inboundRequest struct {
	SenderID string `json:"sender_id"`
	Text     string `json:"text"`
}

func (s *Server) handleInbound(w http.ResponseWriter, r *http.Request) {
	var req inboundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Text == "" || req.SenderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "sender_id and text are required"})
		return
	}

	id := types.ConversationID(chi.URLParam(r, "id"))
	if err := s.coordinator.HandleInbound(r.Context(), id, req.SenderID, req.Text); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id := types.ConversationID(chi.URLParam(r, "id"))
	if err := s.convs.MarkRead(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusRequest is the JSON body for POST /api/conversations/{id}/status.
type statusRequest struct {
	Status types.ConversationStatus `json:"status"`
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	switch req.Status {
	case types.ConversationOpen, types.ConversationSnoozed, types.ConversationResolved:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown status"})
		return
	}

	id := types.ConversationID(chi.URLParam(r, "id"))
	if err := s.convs.SetStatus(r.Context(), id, req.Status); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSentiment(w http.ResponseWriter, r *http.Request) {
	conv, err := s.convs.Get(r.Context(), types.ConversationID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, err)
		return
	}
	label := s.suggest.AnalyzeSentiment(r.Context(), conv.Messages)
	writeJSON(w, http.StatusOK, map[string]string{"sentiment": label})
}

// draftRequest is the JSON body for POST (request) and PUT (edit) on
// /api/conversations/{id}/draft.
type draftRequest struct {
	AgentID string `json:"agent_id,omitempty"`
	Text    string `json:"text,omitempty"`
}

func (s *Server) handleRequestDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.AgentID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "agent_id is required"})
		return
	}

	id := types.ConversationID(chi.URLParam(r, "id"))
	if err := s.composer.RequestDraft(r.Context(), id, types.AgentID(req.AgentID)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.composer.Draft(id))
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	id := types.ConversationID(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, s.composer.Draft(id))
}

func (s *Server) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	id := types.ConversationID(chi.URLParam(r, "id"))
	s.composer.UpdateDraft(id, req.Text)
	writeJSON(w, http.StatusOK, s.composer.Draft(id))
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.registry.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

func (s *Server) handleAddAgent(w http.ResponseWriter, r *http.Request) {
	var a types.Agent
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if a.Name == "" || a.SystemInstruction == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and system_instruction are required"})
		return
	}
	if err := s.registry.Add(r.Context(), &a); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// toggleRequest is the JSON body for the agent flag endpoints.
type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	id := types.AgentID(chi.URLParam(r, "id"))
	if err := s.registry.SetActive(r.Context(), id, req.Enabled); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSetAutoReply(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	id := types.AgentID(chi.URLParam(r, "id"))
	if err := s.registry.SetAutoReply(r.Context(), id, req.Enabled); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.contacts.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (s *Server) handleAddContact(w http.ResponseWriter, r *http.Request) {
	var c types.Contact
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if err := s.contacts.Add(r.Context(), &c); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, c)
}
