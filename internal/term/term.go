// Package term decides whether diagnostic output keeps its ANSI color
// escapes, resolved independently per destination (terminal vs log).
package term

import (
	"fmt"
	"os"
	"regexp"

	xterm "golang.org/x/term"
)

// ColorChoice is a three-way color policy for one destination.
type ColorChoice string

const (
	ColorAuto   ColorChoice = "auto"
	ColorNever  ColorChoice = "never"
	ColorAlways ColorChoice = "always"
)

// ParseColorChoice validates a color choice string from flags or config.
func ParseColorChoice(s string) (ColorChoice, error) {
	switch ColorChoice(s) {
	case ColorAuto, ColorNever, ColorAlways:
		return ColorChoice(s), nil
	}
	return "", fmt.Errorf("invalid color choice %q (want auto, never, or always)", s)
}

// ansiPattern matches the escape sequences rustc embeds in rendered
// diagnostics: ESC, '[', digits/semicolons, one of m G K H.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[mGKH]`)

// StripANSI removes color and cursor escape sequences from text.
// Control characters outside the recognized pattern pass through
// verbatim.
func StripANSI(text string) string {
	return ansiPattern.ReplaceAllString(text, "")
}

// Resolver answers whether terminal output should be colored when the
// policy is auto. Environment and TTY lookups are injectable so tests
// can simulate environments without mutating process state.
type Resolver struct {
	LookupEnv  func(string) (string, bool)
	IsTerminal func() bool
}

// NewResolver returns a Resolver backed by the real environment.
// Diagnostics are printed to stderr, so that is the descriptor probed
// for interactivity.
func NewResolver() *Resolver {
	return &Resolver{
		LookupEnv: os.LookupEnv,
		IsTerminal: func() bool {
			return xterm.IsTerminal(int(os.Stderr.Fd()))
		},
	}
}

// ShouldColor resolves the auto policy for the terminal destination.
// First match wins: a non-empty NO_COLOR forces plain text,
// CARGO_TERM_COLOR always/never is honored (auto and unrecognized
// values fall through to TTY detection), TERM=dumb forces plain text,
// and otherwise color follows stderr interactivity.
func (r *Resolver) ShouldColor() bool {
	if v, ok := r.LookupEnv("NO_COLOR"); ok && v != "" {
		return false
	}
	if v, ok := r.LookupEnv("CARGO_TERM_COLOR"); ok {
		switch v {
		case "always":
			return true
		case "never":
			return false
		}
		return r.IsTerminal()
	}
	if v, ok := r.LookupEnv("TERM"); ok && v == "dumb" {
		return false
	}
	return r.IsTerminal()
}

// ForTerminal formats rendered text for the terminal destination.
func ForTerminal(text string, choice ColorChoice, r *Resolver) string {
	switch choice {
	case ColorAlways:
		return text
	case ColorNever:
		return StripANSI(text)
	default:
		if r.ShouldColor() {
			return text
		}
		return StripANSI(text)
	}
}

// ForLog formats rendered text for the log file. Auto always strips:
// escape codes in a file on disk are noise, not color, so only an
// explicit always keeps them.
func ForLog(text string, choice ColorChoice) string {
	if choice == ColorAlways {
		return text
	}
	return StripANSI(text)
}
