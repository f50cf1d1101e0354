package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kittynXR/cargo-builder/internal/runner"
	"github.com/kittynXR/cargo-builder/internal/term"
)

type buildParams struct {
	CargoArgs       []string `json:"cargo_args,omitempty" jsonschema:"extra arguments passed to cargo build (e.g. --release, -p mycrate)"`
	IncludeWarnings bool     `json:"include_warnings,omitempty" jsonschema:"also return warning diagnostics instead of suppressing them at the compiler"`
	LogOnSuccess    bool     `json:"log_on_success,omitempty" jsonschema:"keep the error log file even when the build succeeds"`
	Log             string   `json:"log,omitempty" jsonschema:"write the error log to this path instead of <target>/build-errors.log"`
}

func (h *handler) buildHandler(ctx context.Context, req *mcp.CallToolRequest, params buildParams) (*mcp.CallToolResult, any, error) {
	cfg := *h.base
	cfg.CargoArgs = append(append([]string(nil), cfg.CargoArgs...), params.CargoArgs...)
	if params.IncludeWarnings {
		cfg.IncludeWarnings = true
	}
	if params.LogOnSuccess {
		cfg.LogOnSuccess = true
	}
	if params.Log != "" {
		cfg.LogPath = params.Log
	}
	// Tool results are plain text.
	cfg.TerminalColor = term.ColorNever

	outcome, diag, err := h.build(ctx, &cfg)
	if err != nil {
		return errorResult(fmt.Sprintf("Build could not run: %v", err))
	}

	return textResult(formatBuildOutput(outcome, diag))
}

func formatBuildOutput(outcome *runner.Outcome, diag string) string {
	var b strings.Builder

	if outcome.Success {
		fmt.Fprintln(&b, "Build succeeded.")
	} else {
		fmt.Fprintf(&b, "Build FAILED (exit code %d).\n", outcome.ExitCode)
	}
	fmt.Fprintf(&b, "Errors: %d", outcome.Errors)
	if outcome.Warnings > 0 {
		fmt.Fprintf(&b, ", warnings: %d", outcome.Warnings)
	}
	fmt.Fprintln(&b)

	if outcome.RunID != "" {
		fmt.Fprintf(&b, "Run: %s\n", outcome.RunID)
	}
	if outcome.LogPath != "" {
		fmt.Fprintf(&b, "Log: %s\n", outcome.LogPath)
	}

	if text := strings.TrimRight(diag, "\n"); text != "" {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, text)
	}

	return b.String()
}
