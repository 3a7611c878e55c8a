// Package execute defines the shared execution types exchanged between the
// task queue, the result pipeline, and interpreter callers.
package execute

// Unit is one submitted code fragment plus its silent flag. Units are
// immutable and consumed exactly once by the task queue.
type Unit struct {
	Code   string
	Silent bool
}

// Outcome classifies the result of executing one unit.
type Outcome int

const (
	// Success means the unit compiled and ran to completion.
	Success Outcome = iota
	// Error means the unit failed with a runtime fault or compile diagnostic.
	Error
	// Incomplete means the input needs more code; it is not an error.
	Incomplete
	// Aborted means the unit was forcibly interrupted before completion.
	// Callers must treat it as inconclusive, not as a code defect.
	Aborted
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Error:
		return "error"
	case Incomplete:
		return "incomplete"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// ExecuteError holds the structured detail reconstructed for Error outcomes.
type ExecuteError struct {
	Kind        string
	Message     string
	StackFrames []string
}

func (e *ExecuteError) String() string {
	if e == nil {
		return ""
	}
	return e.Kind + ": " + e.Message
}

// Result pairs a unit's classified outcome with its payload. Output carries
// the trimmed captured text for Success and Incomplete. Err is set only for
// Error outcomes. Aborted carries neither.
type Result struct {
	Outcome Outcome
	Output  string
	Err     *ExecuteError
}
