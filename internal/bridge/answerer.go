package bridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kayz/sqlpal/internal/history"
	"github.com/kayz/sqlpal/internal/logger"
	"github.com/kayz/sqlpal/internal/pipeline"
)

// ToolSession is a per-question session that must be closed after use.
type ToolSession interface {
	pipeline.ToolSession
	Close() error
}

// SessionOpener opens a fresh tool session per question.
type SessionOpener func(ctx context.Context) (ToolSession, error)

// Answerer turns chat messages into pipeline runs. Every question gets a
// fresh tool-server subprocess, like the other per-request front-ends.
type Answerer struct {
	pipe  *pipeline.Pipeline
	open  SessionOpener
	store *history.Store // optional
}

func NewAnswerer(pipe *pipeline.Pipeline, open SessionOpener, store *history.Store) *Answerer {
	return &Answerer{pipe: pipe, open: open, store: store}
}

// HandleMessage answers one chat message. It is the router's Handler.
func (a *Answerer) HandleMessage(ctx context.Context, msg Message) (Response, error) {
	question := strings.TrimSpace(msg.Text)
	if question == "" {
		return Response{}, nil
	}

	answer, err := a.run(ctx, "bridge", question)
	if err != nil {
		return Response{}, err
	}
	return Response{Text: answer, ThreadID: msg.ID}, nil
}

// RunQuestion answers a standing question. It is the scheduler's runner.
func (a *Answerer) RunQuestion(ctx context.Context, question string) (string, error) {
	return a.run(ctx, "schedule", question)
}

func (a *Answerer) run(ctx context.Context, source, question string) (string, error) {
	session, err := a.open(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to open tool session: %w", err)
	}
	defer session.Close()

	started := time.Now()
	out, err := a.pipe.Run(ctx, session, question)
	a.record(source, question, out, err, time.Since(started))
	if err != nil {
		return "", err
	}

	if out.Failed {
		// Soft failure: surface the tool server's message verbatim.
		return out.Result, nil
	}

	var b strings.Builder
	b.WriteString("SQL:\n")
	b.WriteString(out.SQL)
	b.WriteString("\n\nResults:\n")
	b.WriteString(pipeline.Preview(out.Result))
	if out.RowCount > previewRowsShown(out.Result) {
		fmt.Fprintf(&b, "\n... (%d rows total)", out.RowCount)
	}
	b.WriteString("\n\nSummary:\n")
	b.WriteString(out.Summary)
	return b.String(), nil
}

func previewRowsShown(result string) int {
	return pipeline.RowCount(pipeline.Preview(result))
}

func (a *Answerer) record(source, question string, out pipeline.Outcome, err error, took time.Duration) {
	if a.store == nil {
		return
	}

	status := history.StatusOK
	switch {
	case err != nil:
		status = history.StatusFailed
	case out.Failed:
		status = history.StatusRejected
	}

	if err := a.store.Record(history.Entry{
		Source:   source,
		Question: question,
		SQL:      out.SQL,
		Status:   status,
		RowCount: out.RowCount,
		Duration: took.Milliseconds(),
	}); err != nil {
		logger.Warn("failed to record history: %v", err)
	}
}
