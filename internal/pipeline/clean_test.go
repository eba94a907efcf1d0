package pipeline

import (
	"strings"
	"testing"
)

func TestCleanSQLStripsFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain sql untouched",
			in:   "SELECT TOP 5 * FROM customers",
			want: "SELECT TOP 5 * FROM customers",
		},
		{
			name: "fenced block",
			in:   "```sql\nSELECT * FROM orders\n```",
			want: "SELECT * FROM orders",
		},
		{
			name: "fenced block without language tag",
			in:   "```\nSELECT 1\n```",
			want: "SELECT 1",
		},
		{
			name: "two line fence",
			in:   "```sql\nSELECT 1",
			want: "SELECT 1",
		},
		{
			name: "inline fence leftovers",
			in:   "```sql\nSELECT a\n```sql extra\n```",
			want: "SELECT a",
		},
		{
			name: "surrounding whitespace",
			in:   "  \nSELECT 2\n ",
			want: "SELECT 2",
		},
		{
			name: "multiline statement preserved",
			in:   "```sql\nSELECT name\nFROM customers\nWHERE id = 1\n```",
			want: "SELECT name\nFROM customers\nWHERE id = 1",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := CleanSQL(c.in)
			if got != c.want {
				t.Fatalf("CleanSQL(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}

func TestCleanSQLIdempotent(t *testing.T) {
	inputs := []string{
		"SELECT 1",
		"```sql\nSELECT * FROM t\n```",
		"```\nSELECT a, b\nFROM t\n```",
		"  SELECT TOP 10 * FROM orders  ",
		"```sql\nSELECT 1",
	}
	for _, in := range inputs {
		once := CleanSQL(in)
		twice := CleanSQL(once)
		if once != twice {
			t.Fatalf("CleanSQL not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
}

func TestCleanSQLLeavesNoFenceMarkers(t *testing.T) {
	inputs := []string{
		"```sql\nSELECT 1\n```",
		"```sql\nSELECT ```sql nested\n```",
		"``` \nSELECT 2\n```",
	}
	for _, in := range inputs {
		got := CleanSQL(in)
		if strings.Contains(got, "```") {
			t.Fatalf("CleanSQL(%q) left fence marker: %q", in, got)
		}
		if got != strings.TrimSpace(got) {
			t.Fatalf("CleanSQL(%q) left surrounding whitespace: %q", in, got)
		}
	}
}

func TestPreviewBounds(t *testing.T) {
	short := "h\nr1\nr2"
	if got := Preview(short); got != short {
		t.Fatalf("short result should pass through unchanged, got %q", got)
	}

	var lines []string
	lines = append(lines, "header")
	for i := 0; i < 25; i++ {
		lines = append(lines, "row")
	}
	got := Preview(strings.Join(lines, "\n"))
	if n := len(strings.Split(got, "\n")); n != 11 {
		t.Fatalf("preview has %d lines, want 11", n)
	}

	// exactly 11 lines passes through
	exact := strings.Join(lines[:11], "\n")
	if Preview(exact) != exact {
		t.Fatal("11-line result should pass through unchanged")
	}
}

func TestRowCount(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"header", 0},
		{"header\nrow", 1},
		{"header\nrow1\nrow2\n", 2},
	}
	for _, c := range cases {
		if got := RowCount(c.in); got != c.want {
			t.Fatalf("RowCount(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}
