// Package httpapi exposes the query pipeline over HTTP. It is the one
// front-end that shares a single long-lived tool session across requests.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/mem"

	"github.com/kayz/sqlpal/internal/history"
	"github.com/kayz/sqlpal/internal/logger"
	"github.com/kayz/sqlpal/internal/mcpsql"
	"github.com/kayz/sqlpal/internal/pipeline"
	"github.com/kayz/sqlpal/internal/schedule"
)

// SessionProvider hands out the shared tool session. A request sees either
// the session, ErrNotReady while startup is in flight, or the recorded
// startup error.
type SessionProvider interface {
	Session() (pipeline.ToolSession, error)
	Ready() bool
	StartupError() string
}

// HolderSessions adapts the concrete holder to SessionProvider.
func HolderSessions(h *mcpsql.Holder) SessionProvider {
	return holderSessions{h}
}

type holderSessions struct {
	h *mcpsql.Holder
}

func (hs holderSessions) Session() (pipeline.ToolSession, error) {
	c, err := hs.h.Session()
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (hs holderSessions) Ready() bool          { return hs.h.Ready() }
func (hs holderSessions) StartupError() string { return hs.h.StartupError() }

// Server serves the HTTP API. History and scheduler are optional.
type Server struct {
	pipe      *pipeline.Pipeline
	sessions  SessionProvider
	store     *history.Store
	scheduler *schedule.Scheduler
	startedAt time.Time
}

func NewServer(pipe *pipeline.Pipeline, sessions SessionProvider, store *history.Store, scheduler *schedule.Scheduler) *Server {
	return &Server{
		pipe:      pipe,
		sessions:  sessions,
		store:     store,
		scheduler: scheduler,
		startedAt: time.Now().UTC(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /schema", s.handleSchema)
	mux.HandleFunc("POST /nl2sql", s.handleNL2SQL)
	mux.HandleFunc("POST /execute", s.handleExecute)
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("GET /jobs", s.handleListJobs)
	mux.HandleFunc("POST /jobs", s.handleCreateJob)
	mux.HandleFunc("DELETE /jobs/{id}", s.handleDeleteJob)
	return mux
}

type promptRequest struct {
	Prompt string `json:"prompt"`
}

type sqlRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	var startupError any
	if msg := s.sessions.StartupError(); msg != "" {
		startupError = msg
	}

	system := map[string]any{
		"goroutines": runtime.NumGoroutine(),
		"uptime_sec": int(time.Since(s.startedAt).Seconds()),
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		system["mem_used_percent"] = vm.UsedPercent
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"api":           "ok",
		"mcp_session":   s.sessions.Ready(),
		"startup_error": startupError,
		"system":        system,
	})
}

// session resolves the shared session or writes the appropriate failure:
// 503 while startup is pending, 500 once a startup error is recorded.
func (s *Server) session(w http.ResponseWriter) (pipeline.ToolSession, bool) {
	session, err := s.sessions.Session()
	if err == nil {
		return session, true
	}
	if errors.Is(err, mcpsql.ErrNotReady) {
		writeDetail(w, http.StatusServiceUnavailable, "tool session not ready")
		return nil, false
	}
	writeDetail(w, http.StatusInternalServerError, "tool session startup error: "+err.Error())
	return nil, false
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w)
	if !ok {
		return
	}

	schema, err := s.pipe.FetchSchema(r.Context(), session)
	if err != nil {
		logger.Error("schema fetch failed: %v", err)
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"schema": schema})
}

func (s *Server) handleNL2SQL(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w)
	if !ok {
		return
	}

	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid json body")
		return
	}

	// Best-effort schema context; translation proceeds without it.
	schema, err := s.pipe.FetchSchema(r.Context(), session)
	if err != nil {
		schema = ""
	}

	sql, err := s.pipe.Translate(r.Context(), req.Prompt, schema)
	if err != nil {
		logger.Error("nl2sql failed: %v", err)
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sql": sql})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w)
	if !ok {
		return
	}

	var req sqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid json body")
		return
	}

	res, err := s.pipe.Execute(r.Context(), session, req.Query)
	if err != nil {
		logger.Error("execute failed: %v", err)
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": res.Text})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w)
	if !ok {
		return
	}

	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid json body")
		return
	}

	started := time.Now()
	out, err := s.pipe.Run(r.Context(), session, req.Prompt)
	s.record(req.Prompt, out, err, time.Since(started))
	if err != nil {
		logger.Error("query failed: %v", err)
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"sql":     out.SQL,
		"result":  out.Result,
		"summary": out.Summary,
	})
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

	entry := history.Entry{
		Source:   "api",
		Question: question,
		SQL:      out.SQL,
		Status:   status,
		RowCount: out.RowCount,
		Duration: took.Milliseconds(),
	}
	if err := s.store.Record(entry); err != nil {
		logger.Warn("failed to record history: %v", err)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeDetail(w, http.StatusServiceUnavailable, "history is disabled")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := s.store.Recent(limit)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type createJobRequest struct {
	Name      string `json:"name"`
	Schedule  string `json:"schedule"`
	Question  string `json:"question"`
	Platform  string `json:"platform"`
	ChannelID string `json:"channel_id"`
}

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	if s.scheduler == nil {
		writeDetail(w, http.StatusServiceUnavailable, "scheduler is disabled")
		return
	}
	jobs := s.scheduler.ListJobs()
	if jobs == nil {
		jobs = []*schedule.Job{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		writeDetail(w, http.StatusServiceUnavailable, "scheduler is disabled")
		return
	}

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		req.Name = req.Question
	}

	job, err := s.scheduler.AddJob(req.Name, req.Schedule, req.Question, req.Platform, req.ChannelID)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		writeDetail(w, http.StatusServiceUnavailable, "scheduler is disabled")
		return
	}

	if err := s.scheduler.RemoveJob(r.PathValue("id")); err != nil {
		writeDetail(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
