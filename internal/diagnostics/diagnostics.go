// Package diagnostics decodes the line-oriented JSON stream emitted by
// cargo build --message-format=json-diagnostic-rendered-ansi.
package diagnostics

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message is a decoded cargo message. The concrete types are
// CompilerMessage and BuildFinished.
type Message interface {
	isMessage()
}

// CompilerMessage carries one rustc diagnostic with its pre-rendered text.
type CompilerMessage struct {
	Level    string // "error", "warning", "note", ...
	Rendered string // human-readable text, may contain ANSI escapes
}

// BuildFinished signals the end of the build with its outcome. Cargo
// emits at most one meaningful occurrence; the last one seen wins.
type BuildFinished struct {
	Success bool
}

func (CompilerMessage) isMessage() {}
func (BuildFinished) isMessage()   {}

// envelope mirrors the subset of cargo's output we care about.
// Additional fields are tolerated and ignored.
type envelope struct {
	Reason  string `json:"reason"`
	Message *struct {
		Level    string `json:"level"`
		Rendered string `json:"rendered"`
	} `json:"message"`
	Success bool `json:"success"`
}

// ParseMessage decodes a single line of cargo output. Blank lines,
// lines that are not JSON, and reasons we do not handle decode to
// (nil, nil): cargo interleaves many message kinds with the ones we
// route, and the stream may carry unstructured output.
//
// A compiler-message without a nested message object is an error. That
// shape indicates cargo's output contract changed, not a foreign line.
func ParseMessage(line string) (Message, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}

	var env envelope
	if err := json.Unmarshal([]byte(line), &env); err != nil {
		return nil, nil
	}

	switch env.Reason {
	case "compiler-message":
		if env.Message == nil {
			return nil, fmt.Errorf("compiler-message missing nested 'message' object")
		}
		level := env.Message.Level
		if level == "" {
			level = "unknown"
		}
		if env.Message.Rendered == "" {
			// Nothing to show; drop before routing.
			return nil, nil
		}
		return CompilerMessage{Level: level, Rendered: env.Message.Rendered}, nil

	case "build-finished":
		return BuildFinished{Success: env.Success}, nil

	default:
		return nil, nil
	}
}
