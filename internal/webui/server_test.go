package webui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kayz/sqlpal/internal/mcpsql"
	"github.com/kayz/sqlpal/internal/pipeline"
)

type fakeLLM struct{}

func (fakeLLM) Complete(_ context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, "User asked") {
		return "Seven orders.", nil
	}
	return "SELECT COUNT(*) FROM orders", nil
}

type fakeSession struct {
	closed *atomic.Int32
}

func (f *fakeSession) Schema(context.Context) (string, error) { return "TABLE orders(id)", nil }

func (f *fakeSession) Execute(context.Context, string) (mcpsql.ExecResult, error) {
	return mcpsql.ExecResult{Text: "count\n7"}, nil
}

func (f *fakeSession) Close() error {
	f.closed.Add(1)
	return nil
}

func newTestServer(opened, closed *atomic.Int32, openErr error) *Server {
	open := func(context.Context) (ToolSession, error) {
		if openErr != nil {
			return nil, openErr
		}
		opened.Add(1)
		return &fakeSession{closed: closed}, nil
	}
	return NewServer(pipeline.New(fakeLLM{}), open, nil)
}

func postChat(t *testing.T, h http.Handler, body map[string]string) chatResponse {
	t.Helper()
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(data))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("chat returned %d: %s", rr.Code, rr.Body.String())
	}
	var resp chatResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestStatusEndpoint(t *testing.T) {
	var opened, closed atomic.Int32
	server := newTestServer(&opened, &closed, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "\"ok\":true") {
		t.Fatalf("unexpected status payload: %s", rr.Body.String())
	}
}

func TestChatRunsPipelineWithFreshSession(t *testing.T) {
	var opened, closed atomic.Int32
	server := newTestServer(&opened, &closed, nil)
	h := server.Handler()

	resp := postChat(t, h, map[string]string{"session_id": "s1", "text": "how many orders"})
	if resp.SQL != "SELECT COUNT(*) FROM orders" {
		t.Fatalf("sql = %q", resp.SQL)
	}
	if resp.Summary != "Seven orders." {
		t.Fatalf("summary = %q", resp.Summary)
	}
	if !strings.Contains(resp.Text, "SQL:") || !strings.Contains(resp.Text, "Summary:") {
		t.Fatalf("combined text missing sections: %q", resp.Text)
	}

	postChat(t, h, map[string]string{"session_id": "s1", "text": "again"})
	if opened.Load() != 2 || closed.Load() != 2 {
		t.Fatalf("sessions opened=%d closed=%d, want 2/2", opened.Load(), closed.Load())
	}
}

func TestChatAssignsSessionID(t *testing.T) {
	var opened, closed atomic.Int32
	server := newTestServer(&opened, &closed, nil)

	resp := postChat(t, server.Handler(), map[string]string{"text": "hi"})
	if resp.SessionID == "" {
		t.Fatal("expected a generated session id")
	}
}

func TestChatReportsTopLevelError(t *testing.T) {
	var opened, closed atomic.Int32
	server := newTestServer(&opened, &closed, errors.New("spawn failed"))

	resp := postChat(t, server.Handler(), map[string]string{"session_id": "s", "text": "q"})
	if resp.Error == "" || !strings.HasPrefix(resp.Text, "Error:") {
		t.Fatalf("expected error response, got %+v", resp)
	}
}

func TestMessagesKeepsTranscript(t *testing.T) {
	var opened, closed atomic.Int32
	server := newTestServer(&opened, &closed, nil)
	h := server.Handler()

	postChat(t, h, map[string]string{"session_id": "s1", "text": "how many orders"})

	req := httptest.NewRequest(http.MethodGet, "/api/messages?session_id=s1", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var payload struct {
		Messages []Message `json:"messages"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Messages) != 2 {
		t.Fatalf("transcript has %d messages, want 2", len(payload.Messages))
	}
	if payload.Messages[0].Role != "user" || payload.Messages[1].Role != "assistant" {
		t.Fatalf("unexpected roles: %+v", payload.Messages)
	}
}

func TestEmptyTextRejected(t *testing.T) {
	var opened, closed atomic.Int32
	server := newTestServer(&opened, &closed, nil)

	resp := postChat(t, server.Handler(), map[string]string{"session_id": "s", "text": "   "})
	if resp.Error != "text is required" {
		t.Fatalf("error = %q", resp.Error)
	}
	if opened.Load() != 0 {
		t.Fatal("no session should be opened for empty input")
	}
}
