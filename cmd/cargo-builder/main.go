// Command cargo-builder wraps cargo build and shows only the errors.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	cargobuilder "github.com/kittynXR/cargo-builder"
	"github.com/kittynXR/cargo-builder/internal/config"
	cbmcp "github.com/kittynXR/cargo-builder/internal/mcp"
	"github.com/kittynXR/cargo-builder/internal/report"
	"github.com/kittynXR/cargo-builder/internal/runner"
	"github.com/kittynXR/cargo-builder/internal/term"
	"github.com/kittynXR/cargo-builder/internal/workspace"
)

var (
	flagLog             string
	flagLogOnSuccess    bool
	flagLogColor        string
	flagTerminalColor   string
	flagIncludeWarnings bool
	flagShowBuildOutput bool
	flagQuiet           bool
)

// Flags for 'mcp' command
var (
	mcpHTTPAddr     string
	mcpInstructions bool
)

// Flags for 'history' command
var historyLimit int

// cargoExitCode carries cargo's own exit code out of the build command
// so main can pass it through to the shell unchanged.
var cargoExitCode int

var rootCmd = &cobra.Command{
	Use:   "cargo-builder [flags] [-- cargo-args...]",
	Short: "Run cargo build and show only the errors",
	Long: `cargo-builder - cargo build without the noise

Runs cargo build with JSON diagnostics, filters the stream down to
errors, and mirrors them to a log file that survives only when the
build fails. Warnings are suppressed at the compiler unless requested.

Arguments after -- are forwarded to cargo build verbatim:

  cargo-builder -- --release -p mycrate`,
	Version:       cargobuilder.Version,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if flagQuiet {
			level = zerolog.ErrorLevel
		}
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).
			With().Timestamp().Logger()
	},
	RunE: runBuild,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long:  `Starts an MCP server exposing cargo_build, cargo_runs, and cargo_inspect. Serves stdio by default.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if mcpInstructions {
			fmt.Print(cbmcp.Instructions)
			return nil
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		return serveMCP(ctx)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent builds",
	Long:  `Lists recorded builds for the current workspace, newest first.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		ws, err := workspace.Find(ctx, "cargo", "")
		if err != nil {
			return err
		}

		store := report.NewDiskStore(runsDir(ws))
		records, err := store.List(historyLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No recorded builds.")
			return nil
		}

		for _, r := range records {
			status := "ok"
			if !r.Success {
				status = fmt.Sprintf("FAIL (exit %d)", r.ExitCode)
			}
			fmt.Printf("%s  %s  %s  %.1fs  errors=%d warnings=%d\n",
				r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), status, r.Elapsed, r.Errors, r.Warnings)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(cargobuilder.Version)
	},
}

func init() {
	rootCmd.Flags().SetInterspersed(false)
	rootCmd.Flags().StringVar(&flagLog, "log", "", "error log path (default <target>/build-errors.log)")
	rootCmd.Flags().BoolVar(&flagLogOnSuccess, "log-on-success", false, "keep the log file even when the build succeeds")
	rootCmd.Flags().StringVar(&flagLogColor, "log-color", "never", "color in the log file: auto, always, never")
	rootCmd.Flags().StringVar(&flagTerminalColor, "terminal-color", "auto", "color on the terminal: auto, always, never")
	rootCmd.Flags().BoolVarP(&flagIncludeWarnings, "include-warnings", "w", false, "show warnings as well as errors")
	rootCmd.Flags().BoolVar(&flagShowBuildOutput, "show-build-output", false, "mirror cargo's own progress output")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress status messages")

	mcpCmd.Flags().StringVar(&mcpHTTPAddr, "http", "", "serve HTTP on address (e.g. :9090) instead of stdio")
	mcpCmd.Flags().BoolVar(&mcpInstructions, "instructions", false, "print model instructions and exit")

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "maximum number of builds to list")

	rootCmd.AddCommand(mcpCmd, historyCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("cargo-builder failed")
		os.Exit(1)
	}
	os.Exit(cargoExitCode)
}

// loadConfig builds the effective configuration: defaults, then the
// .cargo-builder file at the crate root, then explicitly-set flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining working directory: %w", err)
	}
	loaded, err := config.Load(wd)
	if err != nil {
		return nil, err
	}
	if err := loaded.File.Apply(cfg); err != nil {
		return nil, fmt.Errorf(".cargo-builder: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("log") {
		cfg.LogPath = flagLog
	}
	if flags.Changed("log-on-success") {
		cfg.LogOnSuccess = flagLogOnSuccess
	}
	if flags.Changed("log-color") {
		c, err := term.ParseColorChoice(flagLogColor)
		if err != nil {
			return nil, fmt.Errorf("--log-color: %w", err)
		}
		cfg.LogColor = c
	}
	if flags.Changed("terminal-color") {
		c, err := term.ParseColorChoice(flagTerminalColor)
		if err != nil {
			return nil, fmt.Errorf("--terminal-color: %w", err)
		}
		cfg.TerminalColor = c
	}
	if flags.Changed("include-warnings") {
		cfg.IncludeWarnings = flagIncludeWarnings
	}
	if flags.Changed("show-build-output") {
		cfg.ShowBuildOutput = flagShowBuildOutput
	}
	if flagQuiet {
		cfg.Quiet = true
	}
	if cfg.Quiet {
		log.Logger = log.Logger.Level(zerolog.ErrorLevel)
	}

	return cfg, nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.CargoArgs = args

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r := runner.New(cfg)

	// Resolve the workspace once; the runner reuses it for the log
	// path and the run record store lives under its target dir.
	ws, err := workspace.Find(ctx, r.Cargo, "")
	if err != nil {
		return err
	}
	r.FindWorkspace = func(context.Context) (*workspace.Workspace, error) {
		return ws, nil
	}
	r.Store = report.NewDiskStore(runsDir(ws))

	outcome, err := r.Run(ctx)
	if err != nil {
		return err
	}

	cargoExitCode = outcome.ExitCode
	return nil
}

// --- mcp ---

func serveMCP(ctx context.Context) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining working directory: %w", err)
	}
	cfg := config.Default()
	loaded, err := config.Load(wd)
	if err != nil {
		return err
	}
	if err := loaded.File.Apply(cfg); err != nil {
		return fmt.Errorf(".cargo-builder: %w", err)
	}

	ws, err := workspace.Find(ctx, "cargo", "")
	if err != nil {
		return err
	}

	disk := report.NewDiskStore(runsDir(ws))
	store := report.NewLRUStore(5, disk)

	server := cbmcp.NewServer(cfg, store)

	if mcpHTTPAddr != "" {
		return serveHTTP(ctx, server, mcpHTTPAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.Info().Str("addr", addr).Msg("listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// runsDir is where build records for a workspace live.
func runsDir(ws *workspace.Workspace) string {
	return filepath.Join(ws.TargetDirectory, ".cargo-builder", "runs")
}
