package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kayz/sqlpal/internal/history"
	"github.com/kayz/sqlpal/internal/mcpsql"
	"github.com/kayz/sqlpal/internal/pipeline"
	"github.com/kayz/sqlpal/internal/schedule"
)

type fakeLLM struct{}

func (fakeLLM) Complete(_ context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, "User asked") {
		return "There are 7 rows.", nil
	}
	return "```sql\nSELECT COUNT(*) FROM orders\n```", nil
}

type fakeSession struct {
	schema string
	result mcpsql.ExecResult
}

func (f *fakeSession) Schema(context.Context) (string, error) { return f.schema, nil }

func (f *fakeSession) Execute(context.Context, string) (mcpsql.ExecResult, error) {
	return f.result, nil
}

type fakeSessions struct {
	session pipeline.ToolSession
	err     error
}

func (f *fakeSessions) Session() (pipeline.ToolSession, error) { return f.session, f.err }
func (f *fakeSessions) Ready() bool                            { return f.err == nil }

func (f *fakeSessions) StartupError() string {
	if f.err != nil && !errors.Is(f.err, mcpsql.ErrNotReady) {
		return f.err.Error()
	}
	return ""
}

func newTestServer(t *testing.T, sessions SessionProvider) (*Server, *history.Store) {
	t.Helper()
	store, err := history.NewStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("history store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewServer(pipeline.New(fakeLLM{}), sessions, store, nil), store
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthBeforeStartup(t *testing.T) {
	srv, _ := newTestServer(t, &fakeSessions{err: mcpsql.ErrNotReady})
	rr := do(t, srv.Handler(), http.MethodGet, "/health", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("health returned %d", rr.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["mcp_session"] != false {
		t.Fatalf("mcp_session = %v, want false", resp["mcp_session"])
	}
	if resp["startup_error"] != nil {
		t.Fatalf("startup_error = %v, want null", resp["startup_error"])
	}
}

func TestHealthAfterStartupFailure(t *testing.T) {
	srv, _ := newTestServer(t, &fakeSessions{err: errors.New("subprocess exited")})
	rr := do(t, srv.Handler(), http.MethodGet, "/health", nil)

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["mcp_session"] != false {
		t.Fatalf("mcp_session = %v, want false", resp["mcp_session"])
	}
	if resp["startup_error"] != "subprocess exited" {
		t.Fatalf("startup_error = %v", resp["startup_error"])
	}
}

func TestEndpointsReturn503WhileStarting(t *testing.T) {
	srv, _ := newTestServer(t, &fakeSessions{err: mcpsql.ErrNotReady})
	h := srv.Handler()

	for _, c := range []struct{ method, path string }{
		{http.MethodGet, "/schema"},
		{http.MethodPost, "/nl2sql"},
		{http.MethodPost, "/execute"},
		{http.MethodPost, "/query"},
	} {
		rr := do(t, h, c.method, c.path, map[string]string{"prompt": "x", "query": "x"})
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s %s returned %d, want 503", c.method, c.path, rr.Code)
		}
	}
}

func TestEndpointsReturn500AfterStartupError(t *testing.T) {
	srv, _ := newTestServer(t, &fakeSessions{err: errors.New("boom")})
	rr := do(t, srv.Handler(), http.MethodGet, "/schema", nil)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("schema returned %d, want 500", rr.Code)
	}
}

func TestSchemaEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &fakeSessions{session: &fakeSession{schema: "TABLE orders(id)"}})
	rr := do(t, srv.Handler(), http.MethodGet, "/schema", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("schema returned %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "TABLE orders(id)") {
		t.Fatalf("unexpected schema payload: %s", rr.Body.String())
	}
}

func TestNL2SQLEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &fakeSessions{session: &fakeSession{schema: "s"}})
	rr := do(t, srv.Handler(), http.MethodPost, "/nl2sql", map[string]string{"prompt": "count orders"})

	if rr.Code != http.StatusOK {
		t.Fatalf("nl2sql returned %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["sql"] != "SELECT COUNT(*) FROM orders" {
		t.Fatalf("sql = %q", resp["sql"])
	}
}

func TestExecuteEndpointPassesSoftFailureVerbatim(t *testing.T) {
	srv, _ := newTestServer(t, &fakeSessions{session: &fakeSession{
		result: mcpsql.ExecResult{Text: "Error: table missing", Failed: true},
	}})
	rr := do(t, srv.Handler(), http.MethodPost, "/execute", map[string]string{"query": "SELECT 1"})

	if rr.Code != http.StatusOK {
		t.Fatalf("execute returned %d, soft failures are 200s", rr.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["text"] != "Error: table missing" {
		t.Fatalf("text = %q", resp["text"])
	}
}

func TestQueryEndpoint(t *testing.T) {
	srv, store := newTestServer(t, &fakeSessions{session: &fakeSession{
		schema: "TABLE orders(id)",
		result: mcpsql.ExecResult{Text: "count\n7"},
	}})
	rr := do(t, srv.Handler(), http.MethodPost, "/query", map[string]string{"prompt": "how many rows in orders"})

	if rr.Code != http.StatusOK {
		t.Fatalf("query returned %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["sql"] == "" || resp["result"] == "" || resp["summary"] == "" {
		t.Fatalf("incomplete response: %#v", resp)
	}

	entries, err := store.Recent(5)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 1 || entries[0].Status != history.StatusOK || entries[0].Source != "api" {
		t.Fatalf("unexpected history: %#v", entries)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	srv, store := newTestServer(t, &fakeSessions{session: &fakeSession{}})
	if err := store.Record(history.Entry{Source: "repl", Question: "q", SQL: "SELECT 1", Status: history.StatusOK}); err != nil {
		t.Fatalf("record: %v", err)
	}

	rr := do(t, srv.Handler(), http.MethodGet, "/history?limit=5", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("history returned %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "SELECT 1") {
		t.Fatalf("unexpected history payload: %s", rr.Body.String())
	}
}

func TestJobEndpoints(t *testing.T) {
	store, err := schedule.NewStore(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("job store: %v", err)
	}
	sched := schedule.NewScheduler(store, nopRunner{}, nil)
	if err := sched.Start(); err != nil {
		t.Fatalf("scheduler: %v", err)
	}
	t.Cleanup(func() { sched.Stop() })

	srv := NewServer(pipeline.New(fakeLLM{}), &fakeSessions{session: &fakeSession{}}, nil, sched)
	h := srv.Handler()

	rr := do(t, h, http.MethodPost, "/jobs", createJobRequest{
		Schedule: "@daily",
		Question: "how many orders",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create job returned %d: %s", rr.Code, rr.Body.String())
	}
	var job schedule.Job
	if err := json.Unmarshal(rr.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.Name != "how many orders" {
		t.Fatalf("name should default to the question, got %q", job.Name)
	}

	rr = do(t, h, http.MethodGet, "/jobs", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), job.ID) {
		t.Fatalf("list jobs: %d %s", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodDelete, "/jobs/"+job.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete job returned %d", rr.Code)
	}

	rr = do(t, h, http.MethodPost, "/jobs", createJobRequest{Schedule: "nope", Question: "q"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid schedule returned %d", rr.Code)
	}
}

type nopRunner struct{}

func (nopRunner) RunQuestion(context.Context, string) (string, error) { return "", nil }
