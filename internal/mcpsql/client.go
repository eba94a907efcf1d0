// Package mcpsql wraps an MCP stdio session to the SQL tool server.
// The server exposes two capabilities: get_schema and execute_sql.
package mcpsql

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kayz/sqlpal/internal/logger"
)

const (
	toolGetSchema  = "get_schema"
	toolExecuteSQL = "execute_sql"
)

// Config describes the tool server subprocess.
type Config struct {
	Command string
	Args    []string
	Env     []string // extra KEY=VALUE entries appended to the parent env
}

// Client is a connected tool-invocation session backed by a subprocess.
type Client struct {
	mcp *client.Client
}

// ExecResult is the executor's tagged result. Failed reflects the tool
// server's convention of prefixing the payload with "Error" on logical
// failure; Text carries the payload verbatim either way.
type ExecResult struct {
	Text   string
	Failed bool
}

// Connect launches the tool server subprocess and performs the
// initialization handshake.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("tool server command is required")
	}

	env := append(os.Environ(), cfg.Env...)
	mcpClient, err := client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to start tool server: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "sqlpal",
		Version: "1.0.0",
	}

	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		_ = mcpClient.Close()
		return nil, fmt.Errorf("tool server initialization failed: %w", err)
	}

	c := &Client{mcp: mcpClient}

	if logger.GetLevel() <= logger.LevelDebug {
		if tools, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{}); err == nil {
			names := make([]string, 0, len(tools.Tools))
			for _, t := range tools.Tools {
				names = append(names, t.Name)
			}
			logger.Debug("tool server ready, tools: %s", strings.Join(names, ", "))
		}
	}

	return c, nil
}

// Schema fetches the database schema description.
func (c *Client) Schema(ctx context.Context) (string, error) {
	text, err := c.callText(ctx, toolGetSchema, map[string]any{})
	if err != nil {
		return "", fmt.Errorf("get_schema failed: %w", err)
	}
	return text, nil
}

// Execute runs a SQL string through the tool server. The SQL is passed
// through unvalidated; a logically rejected query comes back as a Failed
// result, not an error.
func (c *Client) Execute(ctx context.Context, query string) (ExecResult, error) {
	text, err := c.callText(ctx, toolExecuteSQL, map[string]any{"query": query})
	if err != nil {
		return ExecResult{}, fmt.Errorf("execute_sql failed: %w", err)
	}
	return ExecResult{
		Text:   text,
		Failed: strings.HasPrefix(text, "Error"),
	}, nil
}

// Close shuts down the session and the subprocess.
func (c *Client) Close() error {
	if c.mcp == nil {
		return nil
	}
	return c.mcp.Close()
}

func (c *Client) callText(ctx context.Context, name string, args map[string]any) (string, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := c.mcp.CallTool(ctx, req)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, item := range res.Content {
		if tc, ok := mcp.AsTextContent(item); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String(), nil
}
