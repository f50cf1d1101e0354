package diagnostics

import (
	"strings"
	"testing"
)

func TestParseMessage_CompilerError(t *testing.T) {
	msg, err := ParseMessage(`{"reason":"compiler-message","message":{"level":"error","rendered":"boom"}}`)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	cm, ok := msg.(CompilerMessage)
	if !ok {
		t.Fatalf("msg = %T, want CompilerMessage", msg)
	}
	if cm.Level != "error" {
		t.Errorf("Level = %q, want error", cm.Level)
	}
	if cm.Rendered != "boom" {
		t.Errorf("Rendered = %q, want boom", cm.Rendered)
	}
}

func TestParseMessage_RealCargoLine(t *testing.T) {
	line := `{"reason":"compiler-message","package_id":"test 0.1.0 (path+file:///tmp/test)","manifest_path":"/tmp/test/Cargo.toml","target":{"kind":["bin"],"name":"test"},"message":{"message":"cannot find value","code":{"code":"E0425"},"level":"error","spans":[],"children":[],"rendered":"error[E0425]: cannot find value ` + "`undefined_var`" + ` in this scope\n"}}`
	msg, err := ParseMessage(line)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	cm, ok := msg.(CompilerMessage)
	if !ok {
		t.Fatalf("msg = %T, want CompilerMessage", msg)
	}
	if !strings.Contains(cm.Rendered, "undefined_var") {
		t.Errorf("Rendered = %q, want to contain undefined_var", cm.Rendered)
	}
}

func TestParseMessage_BuildFinished(t *testing.T) {
	msg, err := ParseMessage(`{"reason":"build-finished","success":false}`)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	bf, ok := msg.(BuildFinished)
	if !ok {
		t.Fatalf("msg = %T, want BuildFinished", msg)
	}
	if bf.Success {
		t.Error("Success = true, want false")
	}
}

func TestParseMessage_BuildFinishedSuccessAbsent(t *testing.T) {
	msg, err := ParseMessage(`{"reason":"build-finished"}`)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	bf, ok := msg.(BuildFinished)
	if !ok {
		t.Fatalf("msg = %T, want BuildFinished", msg)
	}
	if bf.Success {
		t.Error("Success = true, want false when the flag is absent")
	}
}

func TestParseMessage_LevelDefaultsToUnknown(t *testing.T) {
	msg, err := ParseMessage(`{"reason":"compiler-message","message":{"rendered":"text"}}`)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	cm, ok := msg.(CompilerMessage)
	if !ok {
		t.Fatalf("msg = %T, want CompilerMessage", msg)
	}
	if cm.Level != "unknown" {
		t.Errorf("Level = %q, want unknown", cm.Level)
	}
}

func TestParseMessage_EmptyRenderedDropped(t *testing.T) {
	msg, err := ParseMessage(`{"reason":"compiler-message","message":{"level":"error","rendered":""}}`)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if msg != nil {
		t.Errorf("msg = %v, want nil for empty rendered text", msg)
	}
}

func TestParseMessage_MissingMessageObject(t *testing.T) {
	_, err := ParseMessage(`{"reason":"compiler-message"}`)
	if err == nil {
		t.Fatal("expected error for compiler-message without nested message")
	}
}

func TestParseMessage_IgnoredLines(t *testing.T) {
	for _, line := range []string{
		"",
		"   ",
		"This is not JSON",
		`{"reason":"compiler-artifact","target":{"name":"foo"}}`,
		`{"no_reason_field":true}`,
		`{broken`,
	} {
		msg, err := ParseMessage(line)
		if err != nil {
			t.Errorf("ParseMessage(%q) error: %v", line, err)
		}
		if msg != nil {
			t.Errorf("ParseMessage(%q) = %v, want nil", line, msg)
		}
	}
}
