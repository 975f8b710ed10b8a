package ir

// RunConfig is the frozen per-run configuration. It is constructed once
// at the CLI boundary and must not change after the engine starts: a
// run is either entirely live or entirely dry-run.
type RunConfig struct {
	DryRun     bool
	Serial     string // device serial, resolved before the run starts
	User       int    // Android user id
	OutputDir  string
	BestEffort bool // exit zero even when some keys failed
	ADBPath    string
}
