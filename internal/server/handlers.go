package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mkantor-dev/research_agent/internal/conversation"
	"github.com/mkantor-dev/research_agent/pkg/httpmiddleware"
	"github.com/mkantor-dev/research_agent/pkg/logger"
)

const anonymousUser = "anonymous"

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the reply to POST /chat.
type ChatResponse struct {
	SessionID string               `json:"session_id"`
	Response  string               `json:"response"`
	Papers    []conversation.Paper `json:"papers"`
	Metadata  ChatMetadata         `json:"metadata"`
}

// ChatMetadata carries per-turn bookkeeping.
type ChatMetadata struct {
	Iterations int      `json:"iterations"`
	ToolsUsed  []string `json:"tools_used"`
	Done       bool     `json:"done"`
	Error      string   `json:"error,omitempty"`
}

// SessionResponse is the reply to GET /sessions/{id}.
type SessionResponse struct {
	SessionID     string                      `json:"session_id"`
	UserID        string                      `json:"user_id"`
	Papers        []conversation.Paper        `json:"papers"`
	Metadata      conversation.Metadata       `json:"metadata"`
	MessageCount  int                         `json:"message_count"`
	SummaryRanges []conversation.MessageRange `json:"summary_ranges,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	mwConfig := httpmiddleware.DefaultConfig()
	mwConfig.Logger = s.log
	mwConfig.EnableLogging = true
	mwConfig.Timeout = s.cfg.RequestTimeout
	if len(s.cfg.Security.CORSAllowedOrigins) > 0 {
		mwConfig.CORS.AllowedOrigins = s.cfg.Security.CORSAllowedOrigins
	}
	httpmiddleware.ApplyToRouter(r, mwConfig)
	r.Use(s.metrics.HTTPMiddleware)

	r.Post("/chat", s.handleChat)
	r.Get("/sessions", s.handleListSessions)
	r.Get("/sessions/{sessionID}", s.handleGetSession)
	r.Delete("/sessions/{sessionID}", s.handleDeleteSession)

	r.Get("/health/live", s.health.LivenessHandler())
	r.Get("/health/ready", s.health.ReadinessHandler())
	r.Handle("/metrics", s.metrics.Handler())

	return r
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Security.MaxRequestSize)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message must not be empty"})
		return
	}

	result := s.loop.RunTurn(r.Context(), req.SessionID, userID(r), req.Message)

	status := http.StatusOK
	if result.Error != "" {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, ChatResponse{
		SessionID: result.SessionID,
		Response:  result.Message,
		Papers:    orEmptyPapers(result.Papers),
		Metadata: ChatMetadata{
			Iterations: result.Iterations,
			ToolsUsed:  orEmptyStrings(result.ToolsUsed),
			Done:       result.Done,
			Error:      result.Error,
		},
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.ListSessions(r.Context(), userID(r))
	if err != nil {
		s.log.Error("Failed to list sessions", logger.ErrorField(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list sessions"})
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	agentCtx := s.sessions.Get(r.Context(), sessionID, userID(r))
	if agentCtx == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}

	ranges := make([]conversation.MessageRange, 0, len(agentCtx.Memory.Summaries))
	for _, summary := range agentCtx.Memory.Summaries {
		ranges = append(ranges, summary.MessageRange)
	}

	writeJSON(w, http.StatusOK, SessionResponse{
		SessionID:     agentCtx.SessionID,
		UserID:        agentCtx.UserID,
		Papers:        orEmptyPapers(agentCtx.Papers),
		Metadata:      agentCtx.Metadata,
		MessageCount:  len(agentCtx.History),
		SummaryRanges: ranges,
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	// ownership check before ending the session
	if s.sessions.Get(r.Context(), sessionID, userID(r)) == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}
	s.sessions.Delete(r.Context(), sessionID)
	w.WriteHeader(http.StatusNoContent)
}

func userID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
		return id
	}
	return anonymousUser
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func orEmptyPapers(papers []conversation.Paper) []conversation.Paper {
	if papers == nil {
		return []conversation.Paper{}
	}
	return papers
}

func orEmptyStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
