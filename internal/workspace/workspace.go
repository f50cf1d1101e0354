// Package workspace locates the cargo workspace root and target
// directory for the current project.
package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// Workspace describes the project cargo reports for a directory.
type Workspace struct {
	Root            string
	TargetDirectory string
}

// Find asks cargo for workspace metadata starting from dir (empty
// means the current directory). cargoBin is the cargo binary name or
// path; tests point it at stub scripts.
func Find(ctx context.Context, cargoBin, dir string) (*Workspace, error) {
	cmd := exec.CommandContext(ctx, cargoBin, "metadata", "--format-version=1", "--no-deps")
	cmd.Dir = dir

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("running cargo metadata (are you in a Rust project?): %w", err)
	}

	var meta struct {
		WorkspaceRoot   string `json:"workspace_root"`
		TargetDirectory string `json:"target_directory"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &meta); err != nil {
		return nil, fmt.Errorf("parsing cargo metadata: %w", err)
	}
	if meta.WorkspaceRoot == "" {
		return nil, fmt.Errorf("cargo metadata reported no workspace root")
	}

	return &Workspace{
		Root:            meta.WorkspaceRoot,
		TargetDirectory: meta.TargetDirectory,
	}, nil
}
