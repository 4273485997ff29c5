// internal/web/server.go
//
// Package web exposes the agent over HTTP: chat, command suggestion and
// execution, memory inspection, session event debugging, stored-task
// webhooks, and a documentation fetcher.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/user/cloudclaw/internal/agent"
	"github.com/user/cloudclaw/internal/state"
	"github.com/user/cloudclaw/internal/tracker"
	"github.com/user/cloudclaw/internal/types"
)

// Service is the slice of the agent the HTTP layer needs.
type Service interface {
	ProcessQuery(ctx context.Context, sess *state.Session, query string) string
	Suggest(ctx context.Context, sess *state.Session, query string) ([]agent.Suggestion, error)
	ExecuteCommand(ctx context.Context, sess *state.Session, query, command string) string
}

// DocsFetcher retrieves a documentation page as markdown.
type DocsFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Server is the HTTP handler for the public API.
type Server struct {
	service  Service
	sessions *state.Sessions
	tasks    *state.TaskStore
	docs     DocsFetcher
	mux      *http.ServeMux
}

// NewServer wires the routes. tasks and docs may be nil, which disables the
// webhook and docs endpoints respectively.
func NewServer(service Service, sessions *state.Sessions, tasks *state.TaskStore, docs DocsFetcher) *Server {
	s := &Server{
		service:  service,
		sessions: sessions,
		tasks:    tasks,
		docs:     docs,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("GET /api/suggest", s.handleSuggest)
	s.mux.HandleFunc("POST /api/execute", s.handleExecute)
	s.mux.HandleFunc("GET /api/memory", s.handleMemory)
	s.mux.HandleFunc("POST /api/memory/clear", s.handleMemoryClear)
	s.mux.HandleFunc("GET /api/sessions", s.handleSessions)
	s.mux.HandleFunc("GET /api/sessions/", s.handleSessionSubresource)
	s.mux.HandleFunc("POST /api/sessions/", s.handleSessionClear)
	s.mux.HandleFunc("POST /webhook/", s.handleWebhook)
	s.mux.HandleFunc("GET /api/docs", s.handleDocs)
	return s
}

// ServeHTTP delegates to the internal mux.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type chatRequest struct {
	Message    string `json:"message"`
	SessionKey string `json:"session_key"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, `{"error":"message is required"}`, http.StatusBadRequest)
		return
	}
	if req.SessionKey == "" {
		req.SessionKey = "web:default"
	}

	sess := s.sessions.ResolveOrCreate(types.SessionKey(req.SessionKey))
	response := s.service.ProcessQuery(r.Context(), sess, req.Message)

	writeJSON(w, http.StatusOK, map[string]string{
		"response":   response,
		"session_id": string(sess.ID),
	})
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		http.Error(w, `{"error":"query is required"}`, http.StatusBadRequest)
		return
	}
	sessionKey := r.URL.Query().Get("session_key")
	if sessionKey == "" {
		sessionKey = "web:default"
	}

	sess := s.sessions.ResolveOrCreate(types.SessionKey(sessionKey))
	suggestions, err := s.service.Suggest(r.Context(), sess, query)
	if err != nil {
		slog.Error("suggest failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

type executeRequest struct {
	Command    string `json:"command"`
	Query      string `json:"query"`
	SessionKey string `json:"session_key"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Command == "" {
		http.Error(w, `{"error":"command is required"}`, http.StatusBadRequest)
		return
	}
	if req.SessionKey == "" {
		req.SessionKey = "web:default"
	}

	sess := s.sessions.ResolveOrCreate(types.SessionKey(req.SessionKey))
	response := s.service.ExecuteCommand(r.Context(), sess, req.Query, req.Command)

	writeJSON(w, http.StatusOK, map[string]string{
		"response":   response,
		"session_id": string(sess.ID),
	})
}

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r.URL.Query().Get("session_key"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Memory.Stats())
}

type memoryClearRequest struct {
	SessionKey string `json:"session_key"`
}

func (s *Server) handleMemoryClear(w http.ResponseWriter, r *http.Request) {
	var req memoryClearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	sess, ok := s.lookupSession(w, req.SessionKey)
	if !ok {
		return
	}
	sess.Memory.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

type sessionResponse struct {
	SessionID  string `json:"session_id"`
	SessionKey string `json:"session_key"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
	EventCount int    `json:"event_count"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.sessions.List()
	result := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, sessionResponse{
			SessionID:  string(sess.ID),
			SessionKey: string(sess.Key),
			CreatedAt:  sess.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			UpdatedAt:  sess.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
			EventCount: sess.Log.Len(),
		})
	}
	writeJSON(w, http.StatusOK, result)
}

// handleSessionSubresource serves the per-session read endpoints:
//
//	GET /api/sessions/{key}/summary
//	GET /api/sessions/{key}/events?limit=N
//	GET /api/sessions/{key}/export?format=json&conversation=ID
//	GET /api/sessions/{key}/conversations/{id}/tree
func (s *Server) handleSessionSubresource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	key, rest, found := strings.Cut(path, "/")
	if !found || key == "" {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	sess, ok := s.lookupSession(w, key)
	if !ok {
		return
	}

	switch {
	case rest == "summary":
		writeJSON(w, http.StatusOK, sess.Log.Summary())

	case rest == "events":
		limit := 200
		if q := r.URL.Query().Get("limit"); q != "" {
			if n, err := strconv.Atoi(q); err == nil && n > 0 {
				limit = n
			}
		}
		events := sess.Log.Recent(limit)
		if events == nil {
			events = []*types.Event{}
		}
		writeJSON(w, http.StatusOK, events)

	case rest == "export":
		s.serveExport(w, r, sess)

	case strings.HasPrefix(rest, "conversations/") && strings.HasSuffix(rest, "/tree"):
		id := strings.TrimSuffix(strings.TrimPrefix(rest, "conversations/"), "/tree")
		if id == "" {
			http.Error(w, `{"error":"conversation id required"}`, http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, sess.Log.ConversationTree(types.ConversationID(id)))

	default:
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}
}

func (s *Server) serveExport(w http.ResponseWriter, r *http.Request, sess *state.Session) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = tracker.FormatJSON
	}

	var data []byte
	var err error
	if conv := r.URL.Query().Get("conversation"); conv != "" {
		data, err = sess.Log.ExportConversation(types.ConversationID(conv), format)
	} else {
		data, err = sess.Log.ExportSession(format)
	}

	var unsupported *tracker.UnsupportedFormatError
	if errors.As(err, &unsupported) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": unsupported.Error()})
		return
	}
	if err != nil {
		slog.Error("export failed", "session_key", string(sess.Key), "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// handleSessionClear serves POST /api/sessions/{key}/clear, emptying the
// session's event log while preserving its identity.
func (s *Server) handleSessionClear(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	key, rest, found := strings.Cut(path, "/")
	if !found || rest != "clear" {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	sess, ok := s.lookupSession(w, key)
	if !ok {
		return
	}
	sess.Log.Clear()
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "cleared",
		"session_id": string(sess.ID),
	})
}

type webhookRequest struct {
	Query string `json:"query"`
}

// handleWebhook serves POST /webhook/{name}: it runs a stored task's query
// in the task's session, with an optional body override.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		http.Error(w, `{"error":"tasks not configured"}`, http.StatusServiceUnavailable)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/webhook/")
	if name == "" {
		http.Error(w, `{"error":"task name required"}`, http.StatusBadRequest)
		return
	}

	task, ok := s.tasks.Get(name)
	if !ok {
		http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
		return
	}
	if !task.Enabled {
		http.Error(w, `{"error":"task is disabled"}`, http.StatusForbidden)
		return
	}

	query := task.Query
	var body webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Query != "" {
		query = body.Query
	}

	sess := s.sessions.ResolveOrCreate(task.SessionKey)
	response := s.service.ProcessQuery(r.Context(), sess, query)

	writeJSON(w, http.StatusOK, map[string]string{"response": response})
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	if s.docs == nil {
		http.Error(w, `{"error":"docs fetcher not configured"}`, http.StatusServiceUnavailable)
		return
	}

	url := r.URL.Query().Get("url")
	if url == "" {
		http.Error(w, `{"error":"url is required"}`, http.StatusBadRequest)
		return
	}

	markdown, err := s.docs.Fetch(r.Context(), url)
	if err != nil {
		slog.Error("docs fetch failed", "url", url, "error", err)
		http.Error(w, `{"error":"fetch failed"}`, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url, "markdown": markdown})
}

// lookupSession resolves an existing session by key, writing a 404 when the
// key is empty or unknown.
func (s *Server) lookupSession(w http.ResponseWriter, key string) (*state.Session, bool) {
	if key == "" {
		http.Error(w, `{"error":"session_key is required"}`, http.StatusBadRequest)
		return nil, false
	}
	sess, ok := s.sessions.Get(types.SessionKey(key))
	if !ok {
		http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
