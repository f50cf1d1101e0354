package mcp

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kittynXR/cargo-builder/internal/report"
)

const defaultRunsLimit = 10

type runsParams struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of runs to return (default 10)"`
}

func (h *handler) runsHandler(ctx context.Context, req *mcp.CallToolRequest, params runsParams) (*mcp.CallToolResult, any, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultRunsLimit
	}

	records, err := h.store.List(limit)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to list runs: %v", err))
	}
	if len(records) == 0 {
		return textResult("No recorded builds.")
	}

	var b strings.Builder
	for _, r := range records {
		fmt.Fprintln(&b, formatRecordLine(r))
	}
	return textResult(b.String())
}

type inspectParams struct {
	RunID string `json:"run_id,omitempty" jsonschema:"the run ID from a cargo_build or cargo_runs result"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}

	record, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	var b strings.Builder
	fmt.Fprintln(&b, formatRecordLine(record))
	if len(record.CargoArgs) > 0 {
		fmt.Fprintf(&b, "Args: %s\n", strings.Join(record.CargoArgs, " "))
	}

	if record.LogPath != "" {
		content, err := os.ReadFile(record.LogPath)
		switch {
		case err != nil:
			fmt.Fprintf(&b, "Log %s is no longer readable: %v\n", record.LogPath, err)
		default:
			fmt.Fprintln(&b)
			fmt.Fprint(&b, string(content))
		}
	} else if !record.Success {
		fmt.Fprintln(&b, "No error log was retained for this run.")
	}

	return textResult(b.String())
}

// formatRecordLine renders one build record as a single summary line.
func formatRecordLine(r *report.BuildRecord) string {
	status := "ok"
	if !r.Success {
		status = fmt.Sprintf("FAIL (exit %d)", r.ExitCode)
	}
	return fmt.Sprintf("%s  %s  %s  %.1fs  errors=%d warnings=%d",
		r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), status, r.Elapsed, r.Errors, r.Warnings)
}
