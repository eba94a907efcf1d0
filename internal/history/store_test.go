package history

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := newTestStore(t)

	entries := []Entry{
		{Source: "repl", Question: "q1", SQL: "SELECT 1", Status: StatusOK, RowCount: 1, Duration: 120},
		{Source: "api", Question: "q2", SQL: "SELECT 2", Status: StatusRejected},
		{Source: "web", Question: "q3", SQL: "SELECT 3", Status: StatusFailed},
	}
	for _, e := range entries {
		if err := s.Record(e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	// newest first
	if got[0].Question != "q3" || got[2].Question != "q1" {
		t.Fatalf("unexpected order: %q, %q, %q", got[0].Question, got[1].Question, got[2].Question)
	}
	if got[2].RowCount != 1 || got[2].Duration != 120 {
		t.Fatalf("unexpected fields: %+v", got[2])
	}
	if got[0].CreatedAt.IsZero() {
		t.Fatal("CreatedAt should be filled in")
	}
}

func TestRecentLimit(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 30; i++ {
		if err := s.Record(Entry{Source: "repl", Question: "q", Status: StatusOK}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := s.Recent(5)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d entries, want 5", len(got))
	}

	// zero limit falls back to the default
	got, err = s.Recent(0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 20 {
		t.Fatalf("got %d entries, want default 20", len(got))
	}
}
