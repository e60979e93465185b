package migrate

import (
	"errors"
	"fmt"
	"strings"
)

// ExternalIOError wraps a failure of the document source or the
// destination executor.
type ExternalIOError struct {
	// Op is "fetch" or "exec".
	Op         string
	Collection string
	// Statement labels the failed statement for exec errors, e.g.
	// "insert" or "set unlogged".
	Statement string
	Err       error
}

func (e *ExternalIOError) Error() string {
	if e.Statement != "" {
		return fmt.Sprintf("%s %s (%s): %v", e.Op, e.Collection, e.Statement, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *ExternalIOError) Unwrap() error {
	return e.Err
}

// RunError is returned when a run stops before every selected collection
// was processed.
type RunError struct {
	// Collection is the collection being processed when the run stopped.
	// It is empty if the run was canceled between collections.
	Collection string
	Err        error
	// Processed lists fully migrated collections, in run order.
	Processed []string
	// Remaining lists every selected collection not processed, in run
	// order. The failed collection is first.
	Remaining []string
}

func (e *RunError) Error() string {
	if e.Collection != "" {
		return fmt.Sprintf("migration failed at collection %q: %v", e.Collection, e.Err)
	}
	return fmt.Sprintf("migration stopped: %v", e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// ResumeFilter returns the --collections value that resumes the run.
func (e *RunError) ResumeFilter() string {
	return strings.Join(e.Remaining, ",")
}

// Summary returns operator-facing lines describing what was migrated and
// how to resume.
func (e *RunError) Summary() []string {
	lines := []string{
		"These collections were processed: " + strings.Join(e.Processed, ", "),
		"These collections still need to be processed: " + strings.Join(e.Remaining, ", "),
	}
	if len(e.Remaining) > 0 {
		lines = append(lines, fmt.Sprintf(
			"Resume with --collections=%s (make sure those collections do NOT have a populated table)",
			e.ResumeFilter()))
	}
	return lines
}

// AsRunError returns the RunError in err's chain, if any.
func AsRunError(err error) (*RunError, bool) {
	var re *RunError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// IsExternalIO reports whether err is (or wraps) an ExternalIOError.
func IsExternalIO(err error) bool {
	var ioe *ExternalIOError
	return errors.As(err, &ioe)
}
