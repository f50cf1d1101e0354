// Package config holds the per-invocation build configuration and
// loads the optional .cargo-builder YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kittynXR/cargo-builder/internal/term"
)

// Config is the immutable configuration for one build invocation.
// It is constructed once at startup and shared read-only with every
// component, including the concurrently-running drain goroutines.
type Config struct {
	LogPath         string // empty: <target-dir>/build-errors.log
	LogOnSuccess    bool   // keep the log file even when the build succeeds
	LogColor        term.ColorChoice
	TerminalColor   term.ColorChoice
	IncludeWarnings bool
	ShowBuildOutput bool // mirror cargo's raw stderr instead of capturing it
	Quiet           bool
	CargoArgs       []string // forwarded verbatim to cargo build

	// LookupEnv is consulted for RUSTFLAGS and color signals and takes
	// precedence over the process environment for those variables.
	// Tests substitute it to simulate environments deterministically.
	LookupEnv func(string) (string, bool)
}

// Default returns a Config with the documented defaults: plain-text
// logs, auto terminal color, warnings suppressed.
func Default() *Config {
	return &Config{
		LogColor:      term.ColorNever,
		TerminalColor: term.ColorAuto,
		LookupEnv:     os.LookupEnv,
	}
}

// File is the on-disk .cargo-builder schema. All fields are optional;
// zero values leave the defaults in place.
type File struct {
	Log             string `yaml:"log"`
	LogOnSuccess    bool   `yaml:"log_on_success"`
	LogColor        string `yaml:"log_color"`
	TerminalColor   string `yaml:"terminal_color"`
	IncludeWarnings bool   `yaml:"include_warnings"`
	ShowBuildOutput bool   `yaml:"show_build_output"`
	Quiet           bool   `yaml:"quiet"`
}

// Apply merges file values into cfg. Color strings are validated here
// so a bad config file is rejected before any build starts.
func (f *File) Apply(cfg *Config) error {
	if f.Log != "" {
		cfg.LogPath = f.Log
	}
	if f.LogColor != "" {
		c, err := term.ParseColorChoice(f.LogColor)
		if err != nil {
			return fmt.Errorf("log_color: %w", err)
		}
		cfg.LogColor = c
	}
	if f.TerminalColor != "" {
		c, err := term.ParseColorChoice(f.TerminalColor)
		if err != nil {
			return fmt.Errorf("terminal_color: %w", err)
		}
		cfg.TerminalColor = c
	}
	if f.LogOnSuccess {
		cfg.LogOnSuccess = true
	}
	if f.IncludeWarnings {
		cfg.IncludeWarnings = true
	}
	if f.ShowBuildOutput {
		cfg.ShowBuildOutput = true
	}
	if f.Quiet {
		cfg.Quiet = true
	}
	return nil
}

// LoadResult holds the parsed file and the discovered crate root.
type LoadResult struct {
	File *File
	Root string // directory containing Cargo.toml; falls back to dir
}

// Load reads the .cargo-builder file from the crate root, discovered
// by walking upward from dir looking for Cargo.toml. A missing file
// yields an empty File with no error.
func Load(dir string) (*LoadResult, error) {
	root, err := findCrateRoot(dir)
	if err != nil {
		// Not inside a crate; the workspace lookup will complain
		// later if it matters.
		root = dir
	}

	path := filepath.Join(root, ".cargo-builder")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &LoadResult{File: &File{}, Root: root}, nil
		}
		return nil, fmt.Errorf("reading .cargo-builder: %w", err)
	}

	f := &File{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parsing .cargo-builder: %w", err)
	}
	return &LoadResult{File: f, Root: root}, nil
}

// findCrateRoot walks upward from dir looking for a directory
// containing Cargo.toml.
func findCrateRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "Cargo.toml")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("Cargo.toml not found")
		}
		dir = parent
	}
}
