package migrate

// Options configures a run. The zero value executes against the
// destination; use DefaultOptions for the dry-run default.
type Options struct {
	// DryRun generates every statement without executing any.
	DryRun bool
	// Debug logs each statement before it runs (or is skipped).
	Debug bool
	// ShowDDL writes each CREATE TABLE statement to the preview writer.
	ShowDDL bool
	// ShowFirstInsert writes the INSERT header and first row of each
	// collection to the preview writer.
	ShowFirstInsert bool
	// Collections restricts and orders the run. Empty means every catalog
	// collection in load order.
	Collections []string
	// Limit caps documents fetched per collection. Zero or less means no
	// limit.
	Limit int
}

// DefaultOptions returns options for a dry run over every collection.
func DefaultOptions() Options {
	return Options{DryRun: true}
}

// dedupe drops repeated names, keeping the first occurrence.
func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// State is the lifecycle of an Orchestrator.
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
