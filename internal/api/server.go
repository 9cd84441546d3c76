// Package api implements the HTTP surface: the chat endpoint, the
// conversation history endpoints, and health/version plumbing. Caller
// identity arrives pre-authenticated in the X-User-ID header set by
// the upstream proxy.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/myhealth-io/myhealthd/internal/agent"
	"github.com/myhealth-io/myhealthd/internal/buildinfo"
	"github.com/myhealth-io/myhealthd/internal/llm"
	"github.com/myhealth-io/myhealthd/internal/store"
)

// maxMessageLength caps one chat message.
const maxMessageLength = 4000

// userIDHeader carries the authenticated caller's id.
const userIDHeader = "X-User-ID"

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Server is the HTTP API server.
type Server struct {
	address string
	port    int
	agent   *agent.Service
	logger  *slog.Logger
	server  *http.Server
}

// NewServer creates a new API server.
func NewServer(address string, port int, svc *agent.Service, logger *slog.Logger) *Server {
	return &Server{
		address: address,
		port:    port,
		agent:   svc,
		logger:  logger,
	}
}

// Handler builds the route table. Exposed separately so tests can
// drive it through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/agent/chat", s.handleChat)
	mux.HandleFunc("GET /v1/agent/conversations", s.handleConversationList)
	mux.HandleFunc("GET /v1/agent/conversations/{id}", s.handleConversationGet)
	mux.HandleFunc("DELETE /v1/agent/conversations/{id}", s.handleConversationDelete)

	mux.HandleFunc("GET /v1/version", s.handleVersion)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /", s.handleRoot)

	return s.withLogging(mux)
}

// Start begins serving HTTP requests.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// Tool loops can run for a while before the reply lands.
		WriteTimeout: 120 * time.Second,
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "myhealthd",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, buildinfo.Info(), s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
}

// userID extracts the caller identity, writing a 401 when absent.
func (s *Server) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get(userIDHeader)
	if id == "" {
		s.errorResponse(w, http.StatusUnauthorized, "missing user identity")
		return "", false
	}
	return id, true
}

// ChatRequest is the body for POST /v1/agent/chat.
type ChatRequest struct {
	Content        string `json:"content"`
	ConversationID string `json:"conversation_id,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		s.errorResponse(w, http.StatusBadRequest, "content is required")
		return
	}
	if len(req.Content) > maxMessageLength {
		s.errorResponse(w, http.StatusBadRequest, "content too long")
		return
	}

	result, err := s.agent.SendMessage(r.Context(), userID, req.Content, req.ConversationID)
	if err != nil {
		s.chatError(w, userID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, result, s.logger)
}

// chatError maps agent failures to HTTP statuses: missing
// conversations are 404, gateway problems carry their kind, anything
// else is an opaque 500.
func (s *Server) chatError(w http.ResponseWriter, userID string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.errorResponse(w, http.StatusNotFound, "conversation not found")
		return
	}

	var gwErr *llm.GatewayError
	if errors.As(err, &gwErr) {
		s.logger.Error("gateway error", "user_id", userID, "kind", gwErr.Kind, "error", err)
		switch gwErr.Kind {
		case llm.KindRateLimited:
			s.errorResponse(w, http.StatusTooManyRequests, gwErr.Message)
		case llm.KindConfig:
			s.errorResponse(w, http.StatusInternalServerError, "assistant is not configured")
		default:
			s.errorResponse(w, http.StatusBadGateway, gwErr.Message)
		}
		return
	}

	s.logger.Error("chat error", "user_id", userID, "error", err)
	s.errorResponse(w, http.StatusInternalServerError, "Failed to process chat message")
}

func (s *Server) handleConversationList(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	convs, err := s.agent.ListConversations(r.Context(), userID)
	if err != nil {
		s.logger.Error("list conversations failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	if convs == nil {
		convs = []store.Conversation{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"conversations": convs}, s.logger)
}

func (s *Server) handleConversationGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	conv, err := s.agent.GetConversation(r.Context(), r.PathValue("id"), userID)
	if errors.Is(err, store.ErrNotFound) {
		s.errorResponse(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		s.logger.Error("get conversation failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to get conversation")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, conv, s.logger)
}

func (s *Server) handleConversationDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	deleted, err := s.agent.DeleteConversation(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		s.logger.Error("delete conversation failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to delete conversation")
		return
	}
	if !deleted {
		s.errorResponse(w, http.StatusNotFound, "conversation not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    code,
		},
	}, s.logger)
}
