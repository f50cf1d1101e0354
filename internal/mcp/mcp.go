// Package mcp provides the cargo-builder MCP server, registering all
// tools and publishing model instructions.
package mcp

import (
	"bytes"
	"context"
	_ "embed"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	cargobuilder "github.com/kittynXR/cargo-builder"
	"github.com/kittynXR/cargo-builder/internal/config"
	"github.com/kittynXR/cargo-builder/internal/report"
	"github.com/kittynXR/cargo-builder/internal/runner"
)

//go:embed instructions.md
var Instructions string

// BuildFunc executes one cargo build under the given configuration and
// returns the outcome along with the diagnostic text that would have
// reached the terminal.
type BuildFunc func(ctx context.Context, cfg *config.Config) (*runner.Outcome, string, error)

// handler holds shared dependencies for all tool handlers.
type handler struct {
	base  *config.Config
	store report.Store
	build BuildFunc
}

// NewServer creates an MCP server with all cargo-builder tools
// registered. The base config supplies defaults that individual
// cargo_build calls may override.
func NewServer(base *config.Config, store report.Store, opts ...ServerOption) *mcp.Server {
	h := &handler{
		base:  base,
		store: store,
		build: func(ctx context.Context, cfg *config.Config) (*runner.Outcome, string, error) {
			var diag bytes.Buffer
			r := runner.New(cfg)
			r.Store = store
			r.Terminal = &diag
			outcome, err := r.Run(ctx)
			return outcome, diag.String(), err
		},
	}

	var so serverOptions
	for _, o := range opts {
		o(&so)
	}
	if so.build != nil {
		h.build = so.build
	}

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "cargo-builder", Version: cargobuilder.Version}, mcpOpts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "cargo_build",
		Description: `Run cargo build and return only the errors.

The full compiler output is filtered down to error diagnostics; warnings are
suppressed at the compiler unless include_warnings is set. On failure the
rendered errors are also written to a log file whose path is returned.
Results are stored for drill-down via cargo_inspect.`,
	}, h.buildHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "cargo_runs",
		Description: "List recent builds, newest first, with outcome and error counts.",
	}, h.runsHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "cargo_inspect",
		Description: `Drill into a recorded build.

Use a run_id from a cargo_build or cargo_runs result. Returns the run's
outcome and, when the error log was retained, its full contents.`,
	}, h.inspectHandler)

	return s
}

// ServerOption configures the cargo-builder MCP server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	build BuildFunc
}

// WithBuildFunc overrides how cargo_build executes builds.
func WithBuildFunc(fn BuildFunc) ServerOption {
	return func(o *serverOptions) {
		o.build = fn
	}
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
