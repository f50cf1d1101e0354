package mcp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kittynXR/cargo-builder/internal/config"
	"github.com/kittynXR/cargo-builder/internal/report"
	"github.com/kittynXR/cargo-builder/internal/runner"
	"github.com/kittynXR/cargo-builder/internal/term"
)

// setup creates a full cargo-builder MCP server + client over in-memory
// transports with a stubbed build function.
func setup(t *testing.T, store report.Store, build BuildFunc) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	if store == nil {
		store = report.NewDiskStore(t.TempDir())
	}
	server := NewServer(config.Default(), store, WithBuildFunc(build))

	ct, st := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, st, nil)
	if err != nil {
		t.Fatalf("server.Connect: %v", err)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}

	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Wait()
	})

	return cs
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return res
}

func resultText(r *mcp.CallToolResult) string {
	var parts []string
	for _, c := range r.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// --- cargo_build ---

func TestCargoBuild_Success(t *testing.T) {
	cs := setup(t, nil, func(ctx context.Context, cfg *config.Config) (*runner.Outcome, string, error) {
		return &runner.Outcome{ExitCode: 0, Success: true}, "", nil
	})

	res := callTool(t, cs, "cargo_build", nil)
	if res.IsError {
		t.Fatalf("IsError = true: %s", resultText(res))
	}
	if !strings.Contains(resultText(res), "Build succeeded") {
		t.Errorf("text = %q, want success summary", resultText(res))
	}
}

func TestCargoBuild_FailureCarriesDiagnostics(t *testing.T) {
	cs := setup(t, nil, func(ctx context.Context, cfg *config.Config) (*runner.Outcome, string, error) {
		outcome := &runner.Outcome{
			ExitCode: 101,
			Success:  false,
			Errors:   2,
			LogPath:  "/proj/target/build-errors.log",
			RunID:    "run-1",
		}
		return outcome, "error[E0425]: cannot find value `foo`\n", nil
	})

	res := callTool(t, cs, "cargo_build", nil)
	text := resultText(res)
	if !strings.Contains(text, "Build FAILED (exit code 101)") {
		t.Errorf("text = %q, want failure summary", text)
	}
	if !strings.Contains(text, "error[E0425]") {
		t.Errorf("text = %q, want the rendered error", text)
	}
	if !strings.Contains(text, "run-1") || !strings.Contains(text, "build-errors.log") {
		t.Errorf("text = %q, want run id and log path", text)
	}
}

func TestCargoBuild_RunErrorIsToolError(t *testing.T) {
	cs := setup(t, nil, func(ctx context.Context, cfg *config.Config) (*runner.Outcome, string, error) {
		return nil, "", errors.New("spawning cargo build: not found")
	})

	res := callTool(t, cs, "cargo_build", nil)
	if !res.IsError {
		t.Fatal("IsError = false, want tool error for a build that could not run")
	}
}

func TestCargoBuild_ParamsApplied(t *testing.T) {
	var got *config.Config
	cs := setup(t, nil, func(ctx context.Context, cfg *config.Config) (*runner.Outcome, string, error) {
		got = cfg
		return &runner.Outcome{Success: true}, "", nil
	})

	callTool(t, cs, "cargo_build", map[string]any{
		"cargo_args":       []string{"--release", "-p", "mycrate"},
		"include_warnings": true,
		"log_on_success":   true,
		"log":              "/tmp/custom.log",
	})

	if got == nil {
		t.Fatal("build function was not called")
	}
	if len(got.CargoArgs) != 3 || got.CargoArgs[0] != "--release" {
		t.Errorf("CargoArgs = %v", got.CargoArgs)
	}
	if !got.IncludeWarnings || !got.LogOnSuccess {
		t.Error("include_warnings/log_on_success not applied")
	}
	if got.LogPath != "/tmp/custom.log" {
		t.Errorf("LogPath = %q", got.LogPath)
	}
	if got.TerminalColor != term.ColorNever {
		t.Errorf("TerminalColor = %q, tool output must be plain text", got.TerminalColor)
	}
}

// --- cargo_runs / cargo_inspect ---

func noBuild(ctx context.Context, cfg *config.Config) (*runner.Outcome, string, error) {
	return nil, "", errors.New("unexpected build")
}

func TestCargoRuns_Empty(t *testing.T) {
	cs := setup(t, nil, noBuild)

	res := callTool(t, cs, "cargo_runs", nil)
	if !strings.Contains(resultText(res), "No recorded builds") {
		t.Errorf("text = %q", resultText(res))
	}
}

func TestCargoRuns_ListsNewestFirst(t *testing.T) {
	store := report.NewDiskStore(t.TempDir())
	base := time.Now()
	for i, id := range []string{"old", "new"} {
		err := store.Save(&report.BuildRecord{
			ID:        id,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			Success:   false,
			ExitCode:  101,
			Errors:    1,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	cs := setup(t, store, noBuild)

	text := resultText(callTool(t, cs, "cargo_runs", nil))
	if strings.Index(text, "new") > strings.Index(text, "old") {
		t.Errorf("text = %q, want newest first", text)
	}
	if !strings.Contains(text, "FAIL (exit 101)") {
		t.Errorf("text = %q, want failure status", text)
	}
}

func TestCargoInspect_RequiresRunID(t *testing.T) {
	cs := setup(t, nil, noBuild)

	res := callTool(t, cs, "cargo_inspect", nil)
	if !res.IsError {
		t.Fatal("IsError = false, want error for missing run_id")
	}
}

func TestCargoInspect_UnknownRun(t *testing.T) {
	cs := setup(t, nil, noBuild)

	res := callTool(t, cs, "cargo_inspect", map[string]any{"run_id": "nope"})
	if !res.IsError {
		t.Fatal("IsError = false, want error for unknown run")
	}
}

func TestCargoInspect_IncludesRetainedLog(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "build-errors.log")
	if err := os.WriteFile(logPath, []byte("cargo-builder error log\n======================\n\nerror: boom\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := report.NewDiskStore(t.TempDir())
	err := store.Save(&report.BuildRecord{
		ID:        "run-7",
		StartedAt: time.Now(),
		Success:   false,
		ExitCode:  101,
		Errors:    1,
		LogPath:   logPath,
		CargoArgs: []string{"--release"},
	})
	if err != nil {
		t.Fatal(err)
	}
	cs := setup(t, store, noBuild)

	text := resultText(callTool(t, cs, "cargo_inspect", map[string]any{"run_id": "run-7"}))
	if !strings.Contains(text, "error: boom") {
		t.Errorf("text = %q, want the log contents", text)
	}
	if !strings.Contains(text, "--release") {
		t.Errorf("text = %q, want the cargo args", text)
	}
}

func TestCargoInspect_NoLogRetained(t *testing.T) {
	store := report.NewDiskStore(t.TempDir())
	err := store.Save(&report.BuildRecord{
		ID:        "run-8",
		StartedAt: time.Now(),
		Success:   false,
		ExitCode:  1,
	})
	if err != nil {
		t.Fatal(err)
	}
	cs := setup(t, store, noBuild)

	text := resultText(callTool(t, cs, "cargo_inspect", map[string]any{"run_id": "run-8"}))
	if !strings.Contains(text, "No error log was retained") {
		t.Errorf("text = %q", text)
	}
}
