// Package pipeline implements the four-stage question pipeline shared by
// every front-end: fetch schema, translate to SQL, execute, summarize.
package pipeline

import (
	"context"
	"fmt"

	"github.com/kayz/sqlpal/internal/logger"
	"github.com/kayz/sqlpal/internal/mcpsql"
)

// SummaryFallback is substituted when summarization fails. Translation and
// execution failures abort the request; a missing summary does not.
const SummaryFallback = "(summary unavailable)"

// Completer produces one completion for one prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ToolSession is the slice of the tool-server session the pipeline needs.
type ToolSession interface {
	Schema(ctx context.Context) (string, error)
	Execute(ctx context.Context, query string) (mcpsql.ExecResult, error)
}

// Outcome carries everything one pipeline run produced.
type Outcome struct {
	Schema   string
	SQL      string
	Result   string
	Failed   bool // tool server reported a logical failure ("Error" prefix)
	Summary  string
	RowCount int
}

// Pipeline binds the stages to one completion provider. Tool sessions are
// passed per call since their lifetime differs per front-end.
type Pipeline struct {
	llm Completer
}

func New(llm Completer) *Pipeline {
	return &Pipeline{llm: llm}
}

// FetchSchema asks the tool server for the schema description.
func (p *Pipeline) FetchSchema(ctx context.Context, session ToolSession) (string, error) {
	return session.Schema(ctx)
}

// Translate converts a natural-language question into best-effort SQL
// text. The output is cleaned of markdown fencing but never validated.
func (p *Pipeline) Translate(ctx context.Context, question, schema string) (string, error) {
	raw, err := p.llm.Complete(ctx, renderTranslatePrompt(question, schema))
	if err != nil {
		return "", fmt.Errorf("translation failed: %w", err)
	}
	return CleanSQL(raw), nil
}

// Execute runs the SQL through the tool session.
func (p *Pipeline) Execute(ctx context.Context, session ToolSession, sql string) (mcpsql.ExecResult, error) {
	return session.Execute(ctx, sql)
}

// Summarize produces a prose answer from the question, the SQL, and a
// bounded preview of the result.
func (p *Pipeline) Summarize(ctx context.Context, question, sql, result string) (string, error) {
	summary, err := p.llm.Complete(ctx, renderSummaryPrompt(question, sql, Preview(result)))
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}
	return summary, nil
}

// Run executes the full pipeline against the given session. On schema
// fetch failure an empty schema is substituted; a summarization failure
// yields SummaryFallback. Translation and execution failures abort.
func (p *Pipeline) Run(ctx context.Context, session ToolSession, question string) (Outcome, error) {
	schema, err := p.FetchSchema(ctx, session)
	if err != nil {
		logger.Warn("schema fetch failed, continuing without schema: %v", err)
		schema = ""
	}
	return p.RunWithSchema(ctx, session, question, schema)
}

// RunWithSchema is Run with a caller-provided schema, for front-ends that
// fetch the schema once up front.
func (p *Pipeline) RunWithSchema(ctx context.Context, session ToolSession, question, schema string) (Outcome, error) {
	out := Outcome{Schema: schema}

	sql, err := p.Translate(ctx, question, schema)
	if err != nil {
		return out, err
	}
	out.SQL = sql

	res, err := p.Execute(ctx, session, sql)
	if err != nil {
		return out, err
	}
	out.Result = res.Text
	out.Failed = res.Failed
	if !res.Failed {
		out.RowCount = RowCount(res.Text)
	}

	summary, err := p.Summarize(ctx, question, sql, res.Text)
	if err != nil {
		logger.Warn("summarization failed: %v", err)
		summary = SummaryFallback
	}
	out.Summary = summary

	return out, nil
}
