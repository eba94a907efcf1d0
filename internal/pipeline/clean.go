package pipeline

import "strings"

// previewLines bounds the result text handed to the summarizer:
// one header line plus at most ten data rows.
const previewLines = 11

// CleanSQL strips markdown fencing from model output. When the text opens
// with a fence, the first and last lines are dropped; any remaining
// literal fence markers are removed either way, so the function is
// idempotent and its output never contains ``` or ```sql.
func CleanSQL(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```") {
		lines := strings.Split(s, "\n")
		if len(lines) > 2 {
			s = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}

	s = strings.ReplaceAll(s, "```sql", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// Preview returns the bounded result preview: the input unchanged when it
// fits, otherwise its first eleven lines.
func Preview(result string) string {
	lines := strings.Split(result, "\n")
	if len(lines) <= previewLines {
		return result
	}
	return strings.Join(lines[:previewLines], "\n")
}

// RowCount reports the number of data rows in a result, assuming the
// first line is a header.
func RowCount(result string) int {
	if strings.TrimSpace(result) == "" {
		return 0
	}
	n := len(strings.Split(strings.TrimRight(result, "\n"), "\n")) - 1
	if n < 0 {
		return 0
	}
	return n
}
