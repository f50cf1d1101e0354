// Package runner spawns cargo build, filters its JSON diagnostic
// stream down to errors, and maintains the on-disk error log whose
// fate depends on the final build outcome.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kittynXR/cargo-builder/internal/buildlog"
	"github.com/kittynXR/cargo-builder/internal/config"
	"github.com/kittynXR/cargo-builder/internal/diagnostics"
	"github.com/kittynXR/cargo-builder/internal/report"
	"github.com/kittynXR/cargo-builder/internal/term"
	"github.com/kittynXR/cargo-builder/internal/workspace"
)

// maxLineBytes caps a single cargo output line. Rendered diagnostics
// for macro-heavy code can run long.
const maxLineBytes = 1 << 20

// Runner executes one cargo build and routes its diagnostics to the
// terminal and the error log.
type Runner struct {
	Config   *config.Config
	Resolver *term.Resolver
	Store    report.Store // optional; records the run when non-nil

	// Cargo is the cargo binary name or path. Tests point it at stub
	// scripts.
	Cargo string

	// Terminal receives formatted diagnostics (default os.Stderr).
	Terminal io.Writer

	// FindWorkspace locates the workspace for log-path and record
	// defaults. The default implementation shells out to cargo
	// metadata.
	FindWorkspace func(ctx context.Context) (*workspace.Workspace, error)
}

// New returns a Runner wired to the real cargo binary, stderr, and
// environment-backed color resolution.
func New(cfg *config.Config) *Runner {
	r := &Runner{
		Config:   cfg,
		Resolver: term.NewResolver(),
		Cargo:    "cargo",
		Terminal: os.Stderr,
	}
	if cfg.LookupEnv != nil {
		r.Resolver.LookupEnv = cfg.LookupEnv
	}
	r.FindWorkspace = func(ctx context.Context) (*workspace.Workspace, error) {
		return workspace.Find(ctx, r.Cargo, "")
	}
	return r
}

// Run executes the build and returns its outcome. The returned exit
// code is cargo's own, so callers can pass it through unchanged. Any
// spawn, pipe-read, protocol, or log-file failure aborts the run with
// an error; there are no retries.
func (r *Runner) Run(ctx context.Context) (*Outcome, error) {
	cfg := r.Config
	started := time.Now()

	ws, err := r.FindWorkspace(ctx)
	if err != nil {
		return nil, err
	}

	logPath := cfg.LogPath
	if logPath == "" {
		logPath = filepath.Join(ws.TargetDirectory, "build-errors.log")
	}
	logger := buildlog.New(logPath, cfg.LogColor, cfg.LogOnSuccess)

	argv := append([]string{"build", "--message-format=json-diagnostic-rendered-ansi"}, cfg.CargoArgs...)
	cmd := exec.CommandContext(ctx, r.Cargo, argv...)
	cmd.Env = r.buildEnv()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stdout pipe: %w", err)
	}

	var stderr io.ReadCloser
	if cfg.ShowBuildOutput {
		cmd.Stderr = os.Stderr
	} else {
		stderr, err = cmd.StderrPipe()
		if err != nil {
			return nil, fmt.Errorf("opening stderr pipe: %w", err)
		}
	}

	log.Info().Msg("starting build")

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawning cargo build: %w", err)
	}

	// Both pipes are drained concurrently with each other and with the
	// wait below: cargo stalls if either kernel buffer fills while
	// nothing reads it.
	var (
		wg        sync.WaitGroup
		st        runState
		stdoutErr error
		fallback  []string
		stderrErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		stdoutErr = r.drainStdout(stdout, logger, &st)
	}()

	if stderr != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fallback, stderrErr = collectLines(stderr)
		}()
	}

	wg.Wait()

	waitErr := cmd.Wait()
	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
			if exitCode < 0 {
				// Killed by signal; no exit code available.
				exitCode = 1
			}
		} else {
			return nil, fmt.Errorf("waiting for cargo build: %w", waitErr)
		}
	}

	if stdoutErr != nil {
		return nil, stdoutErr
	}
	if stderrErr != nil {
		return nil, stderrErr
	}

	finalSuccess := exitCode == 0
	if st.finished != nil {
		finalSuccess = *st.finished
	}

	// Fallback: the build failed but the structured stream carried no
	// error. Whatever cargo said on stderr is the only record we have.
	if !finalSuccess && !st.errorSeen && stderr != nil {
		raw := strings.TrimRight(strings.Join(fallback, "\n"), "\n")
		if strings.TrimSpace(raw) != "" {
			if err := logger.LogError(raw); err != nil {
				return nil, err
			}
			st.errorSeen = true
			st.errors++
		}
	}

	if err := logger.Finalize(finalSuccess && !st.errorSeen); err != nil {
		return nil, err
	}

	outcome := &Outcome{
		ExitCode: exitCode,
		Success:  finalSuccess,
		Errors:   st.errors,
		Warnings: st.warnings,
	}
	if logger.HasWritten() && (!finalSuccess || st.errorSeen || cfg.LogOnSuccess) {
		outcome.LogPath = logger.Path()
	}

	if finalSuccess && !st.errorSeen {
		log.Info().Msg("build completed successfully")
	} else {
		log.Error().Int("exit_code", exitCode).Msg("build failed")
		if outcome.LogPath != "" {
			log.Info().Str("log", outcome.LogPath).Msg("error details written")
		}
	}

	if r.Store != nil {
		outcome.RunID = uuid.New().String()
		record := &report.BuildRecord{
			ID:        outcome.RunID,
			StartedAt: started,
			Elapsed:   time.Since(started).Seconds(),
			Success:   finalSuccess,
			ExitCode:  exitCode,
			Errors:    st.errors,
			Warnings:  st.warnings,
			LogPath:   outcome.LogPath,
			CargoArgs: cfg.CargoArgs,
		}
		if err := r.Store.Save(record); err != nil {
			// History is auxiliary; a failed save never fails the build.
			log.Warn().Err(err).Msg("saving build record")
		}
	}

	return outcome, nil
}

// drainStdout decodes the structured stream line by line and routes
// each message. On a fatal error it keeps consuming the pipe to EOF so
// the child is never blocked on a full buffer, then reports the first
// error.
func (r *Runner) drainStdout(pipe io.Reader, logger *buildlog.Logger, st *runState) error {
	cfg := r.Config

	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		msg, err := diagnostics.ParseMessage(scanner.Text())
		if err != nil {
			io.Copy(io.Discard, pipe)
			return fmt.Errorf("decoding cargo output: %w", err)
		}

		switch m := msg.(type) {
		case diagnostics.CompilerMessage:
			switch m.Level {
			case "error":
				st.errorSeen = true
				st.errors++
				fmt.Fprint(r.Terminal, term.ForTerminal(m.Rendered, cfg.TerminalColor, r.Resolver))
				if err := logger.LogError(m.Rendered); err != nil {
					io.Copy(io.Discard, pipe)
					return err
				}
			case "warning":
				st.warnings++
				if !cfg.IncludeWarnings {
					break
				}
				fmt.Fprint(r.Terminal, term.ForTerminal(m.Rendered, cfg.TerminalColor, r.Resolver))
				// Warnings are ephemeral unless the user wants a
				// persistent record anyway.
				if cfg.LogOnSuccess {
					if err := logger.LogError(m.Rendered); err != nil {
						io.Copy(io.Discard, pipe)
						return err
					}
				}
			}
			// Other levels (note, help, ...) are dropped.

		case diagnostics.BuildFinished:
			s := m.Success
			st.finished = &s
		}
	}

	if err := scanner.Err(); err != nil {
		io.Copy(io.Discard, pipe)
		return fmt.Errorf("reading cargo stdout: %w", err)
	}
	return nil
}

// collectLines drains a pipe to EOF, retaining the lines for fallback
// logging.
func collectLines(pipe io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		io.Copy(io.Discard, pipe)
		return lines, fmt.Errorf("reading cargo stderr: %w", err)
	}
	return lines, nil
}

// buildEnv adjusts the child environment: warnings are silenced at the
// compiler unless requested, and an explicit terminal color policy is
// forwarded so cargo's own output agrees with ours. Under auto the
// variable is left untouched and cargo applies its own TTY detection.
func (r *Runner) buildEnv() []string {
	cfg := r.Config
	env := os.Environ()

	if !cfg.IncludeWarnings {
		flags, _ := cfg.LookupEnv("RUSTFLAGS")
		if flags != "" {
			flags += " "
		}
		flags += "-Awarnings"
		env = append(dropVar(env, "RUSTFLAGS"), "RUSTFLAGS="+flags)
	}

	switch cfg.TerminalColor {
	case term.ColorAlways:
		env = append(dropVar(env, "CARGO_TERM_COLOR"), "CARGO_TERM_COLOR=always")
	case term.ColorNever:
		env = append(dropVar(env, "CARGO_TERM_COLOR"), "CARGO_TERM_COLOR=never")
	}

	return env
}

// dropVar removes every entry for key from env. The caller appends the
// replacement, sourced from cfg.LookupEnv, which takes precedence over
// the process environment for the variables we rewrite.
func dropVar(env []string, key string) []string {
	prefix := key + "="
	out := env[:0]
	for _, kv := range env {
		if !strings.HasPrefix(kv, prefix) {
			out = append(out, kv)
		}
	}
	return out
}
