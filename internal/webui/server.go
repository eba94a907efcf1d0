// Package webui serves the browser chat front-end. Unlike the HTTP API it
// opens a fresh tool-server subprocess per request, trading overhead for
// isolation, and keeps conversation history in memory only.
package webui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kayz/sqlpal/internal/history"
	"github.com/kayz/sqlpal/internal/logger"
	"github.com/kayz/sqlpal/internal/pipeline"
)

// ToolSession is a per-request session that must be closed after use.
type ToolSession interface {
	pipeline.ToolSession
	Close() error
}

// SessionOpener opens a fresh tool session (a new subprocess) per request.
type SessionOpener func(ctx context.Context) (ToolSession, error)

// Message is one entry of a chat transcript.
type Message struct {
	Role string `json:"role"` // "user" or "assistant"
	Text string `json:"text"`
}

type Server struct {
	pipe      *pipeline.Pipeline
	open      SessionOpener
	store     *history.Store // optional
	startedAt time.Time

	mu       sync.Mutex
	sessions map[string][]Message

	upgrader websocket.Upgrader
}

func NewServer(pipe *pipeline.Pipeline, open SessionOpener, store *history.Store) *Server {
	return &Server{
		pipe:      pipe,
		open:      open,
		store:     store,
		startedAt: time.Now().UTC(),
		sessions:  make(map[string][]Message),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/messages", s.handleMessages)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"started_at": s.startedAt.Format(time.RFC3339),
		"uptime_sec": int(time.Since(s.startedAt).Seconds()),
	})
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	SQL       string `json:"sql,omitempty"`
	Result    string `json:"result,omitempty"`
	Summary   string `json:"summary,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}

	resp := s.answer(r.Context(), req)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")

	s.mu.Lock()
	transcript := append([]Message(nil), s.sessions[sessionID]...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"messages": transcript})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		var req chatRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		resp := s.answer(r.Context(), req)
		if err := conn.WriteJSON(resp); err != nil {
			return
		}
	}
}

// answer runs one question through the pipeline with a fresh subprocess
// and appends both sides to the in-memory transcript.
func (s *Server) answer(ctx context.Context, req chatRequest) chatResponse {
	req.Text = strings.TrimSpace(req.Text)
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}
	resp := chatResponse{SessionID: req.SessionID}
	if req.Text == "" {
		resp.Error = "text is required"
		return resp
	}

	s.appendMessage(req.SessionID, Message{Role: "user", Text: req.Text})

	started := time.Now()
	out, err := s.runOnce(ctx, req.Text)
	s.record(req.Text, out, err, time.Since(started))
	if err != nil {
		logger.Error("web question failed: %v", err)
		resp.Error = err.Error()
		resp.Text = "Error: " + err.Error()
		s.appendMessage(req.SessionID, Message{Role: "assistant", Text: resp.Text})
		return resp
	}

	resp.SQL = out.SQL
	resp.Result = out.Result
	resp.Summary = out.Summary
	resp.Text = fmt.Sprintf("SQL:\n%s\n\nResults:\n%s\n\nSummary:\n%s", out.SQL, out.Result, out.Summary)
	s.appendMessage(req.SessionID, Message{Role: "assistant", Text: resp.Text})
	return resp
}

func (s *Server) runOnce(ctx context.Context, question string) (pipeline.Outcome, error) {
	session, err := s.open(ctx)
	if err != nil {
		return pipeline.Outcome{}, fmt.Errorf("failed to open tool session: %w", err)
	}
	defer session.Close()

	return s.pipe.Run(ctx, session, question)
}

func (s *Server) appendMessage(sessionID string, msg Message) {
	s.mu.Lock()
	s.sessions[sessionID] = append(s.sessions[sessionID], msg)
	s.mu.Unlock()
}

func (s *Server) record(question string, out pipeline.Outcome, err error, took time.Duration) {
	if s.store == nil {
		return
	}

	status := history.StatusOK
	switch {
	case err != nil:
		status = history.StatusFailed
	case out.Failed:
		status = history.StatusRejected
	}

	if err := s.store.Record(history.Entry{
		Source:   "web",
		Question: question,
		SQL:      out.SQL,
		Status:   status,
		RowCount: out.RowCount,
		Duration: took.Milliseconds(),
	}); err != nil {
		logger.Warn("failed to record history: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
