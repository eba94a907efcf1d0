package pipeline

import (
	"strings"
	"text/template"
)

// Prompt templates are versioned so the LLM-facing contract can change
// without hunting down inline string concatenation.
const (
	translatePromptVersion = "v1"
	summaryPromptVersion   = "v1"
)

var translateTmpl = template.Must(template.New("translate").Parse(`Convert the user's request to a VALID MSSQL SQL query.
Return ONLY the SQL query without any markdown formatting, explanations, or code blocks.

Schema:
{{.Schema}}

Rules:
- Use SELECT TOP N instead of LIMIT N
- Do NOT use SHOW TABLES (use SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES instead)
- Return only the raw SQL query
- No markdown code blocks (no ` + "```sql or ```" + `)
- No explanations or comments

User request: {{.Question}}
`))

var summaryTmpl = template.Must(template.New("summary").Parse(`User asked: {{.Question}}

SQL Executed:
{{.SQL}}

Results (first 10 rows):
{{.Rows}}

Provide a clear, concise summary for the user. Include:
1. A direct answer to their question
2. Key insights from the data
3. Any notable patterns or findings

Keep it natural and conversational.
`))

type translateInput struct {
	Schema   string
	Question string
}

type summaryInput struct {
	Question string
	SQL      string
	Rows     string
}

func renderTranslatePrompt(question, schema string) string {
	var b strings.Builder
	// Must(...) guarantees the template parses; rendering plain strings
	// through it cannot fail.
	_ = translateTmpl.Execute(&b, translateInput{Schema: schema, Question: question})
	return b.String()
}

func renderSummaryPrompt(question, sql, rows string) string {
	var b strings.Builder
	_ = summaryTmpl.Execute(&b, summaryInput{Question: question, SQL: sql, Rows: rows})
	return b.String()
}
