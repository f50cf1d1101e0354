package runner

// runState is mutated only by the stdout drain goroutine and read by
// the coordinator after the join.
type runState struct {
	errorSeen bool
	errors    int
	warnings  int
	finished  *bool // last build-finished flag seen, nil if none
}

// Outcome summarises a finished build.
type Outcome struct {
	ExitCode int
	Success  bool   // final build result, not "no errors": warnings may be logged
	Errors   int    // error blocks routed (including one fallback block)
	Warnings int    // warning diagnostics decoded
	LogPath  string // empty when the log file was not retained
	RunID    string // empty when no record store was attached
}
