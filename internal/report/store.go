// Package report persists build run records so later invocations and
// the MCP server can inspect past builds.
package report

import "time"

// BuildRecord summarises one build invocation.
type BuildRecord struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Elapsed   float64   `json:"elapsed_seconds"`
	Success   bool      `json:"success"`
	ExitCode  int       `json:"exit_code"`
	Errors    int       `json:"errors"`
	Warnings  int       `json:"warnings"`
	LogPath   string    `json:"log_path,omitempty"` // empty when the log was deleted
	CargoArgs []string  `json:"cargo_args,omitempty"`
}

// Store persists and retrieves build records.
type Store interface {
	Save(record *BuildRecord) error
	Load(id string) (*BuildRecord, error)
	// List returns records newest-first, at most limit entries
	// (limit <= 0 means no cap).
	List(limit int) ([]*BuildRecord, error)
}
