// Package engine declares the narrow contract this layer consumes from the
// embedded compiler+interpreter. The engine itself (parsing, type-checking,
// code generation, symbol table) is an external collaborator; nothing outside
// this package may depend on engine internals directly.
package engine

import (
	"context"
	"io"
)

// Status is the raw classification an engine reports for one run.
type Status int

const (
	StatusSuccess Status = iota
	StatusError
	StatusIncomplete
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusIncomplete:
		return "incomplete"
	default:
		return "unknown"
	}
}

// Thrown describes the most recent runtime exception recorded by the engine.
type Thrown struct {
	Kind        string
	Message     string
	StackFrames []string
}

// Binding is a named value in the engine's namespace. Transient bindings are
// excluded from any state capture or serialization the engine performs.
type Binding struct {
	Name         string
	DeclaredType string
	Value        any
	Transient    bool
}

// Namespace exposes the engine's top-level definitions.
type Namespace interface {
	// Bind inserts or overwrites a named value.
	Bind(b Binding) error
	// Lookup returns the binding for name, or false if unbound.
	Lookup(name string) (Binding, bool)
	// Names enumerates all defined top-level names.
	Names() []string
	// TakeLastException atomically takes and clears the single-slot
	// last-exception mailbox. Returns nil when the slot is empty.
	TakeLastException() *Thrown
}

// Reporter exposes the engine's compile diagnostic state.
type Reporter interface {
	// HasErrors reports whether unresolved compile diagnostics are pending.
	HasErrors() bool
}

// PathConfig is the engine's mutable resolution-path configuration. All path
// mutation goes through this adapter; callers never touch engine internals.
type PathConfig interface {
	// Entries returns the current resolution path in order.
	Entries() []string
	// SetEntries replaces the resolution path.
	SetEntries(entries []string)
	// Invalidate drops the engine's cached metadata for exactly the given
	// entries, forcing re-resolution without a full-session invalidation.
	Invalidate(entries []string)
}

// Completer is the engine's code-completion subsystem.
type Completer interface {
	Complete(text string, pos int) (cursor int, candidates []string)
}

// Engine is the stateful compiler+interpreter session object holding all
// accumulated definitions. Run output is written to the writer the engine
// was constructed with. Implementations need not be safe for concurrent
// use; callers serialize access.
type Engine interface {
	// Run compiles and evaluates one code fragment. The context is severed
	// on interruption; honoring it is best-effort. Silent runs suppress the
	// fragment's own result printing. A non-nil error indicates an
	// engine-level fatal fault, not a fault in the evaluated code.
	Run(ctx context.Context, code string, silent bool) (Status, error)

	Namespace() Namespace
	Reporter() Reporter
	Paths() PathConfig
	Completer() Completer

	// SideLoad makes the archives' contents loadable by running code,
	// independent of the compiler's own resolution path.
	SideLoad(archives ...string) error

	// Reinitialize forces a symbol-table reset pass so subsequently added
	// archives resolve as first-class definitions. Existing bindings are
	// orphaned as definitions but their values stay reachable through the
	// namespace until rebound.
	Reinitialize() error

	// Address is an opaque identity collaborating services use to fetch
	// dynamically compiled classes.
	Address() string

	// Close releases the engine and all accumulated definitions.
	Close() error
}

// Factory creates a fresh engine writing its output to out. Called once per
// session start so a restart never carries prior state over.
type Factory func(out io.Writer) (Engine, error)
