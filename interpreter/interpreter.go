// Package interpreter implements the session-scoped execution layer between
// notebook/REPL front-ends and a long-lived stateful engine. It owns the
// task serialization queue, the result classification pipeline, and the
// module-path hot-swap protocol.
//
//	itp, err := interpreter.New(&cfg, factory)
//	err = itp.Start()
//	res, err := itp.Interpret(ctx, "1+1", false)
package interpreter

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hunglin/spark-kernel/core/execute"
	"github.com/hunglin/spark-kernel/engine"
	"github.com/hunglin/spark-kernel/observability"
	"github.com/hunglin/spark-kernel/stream"
	"github.com/hunglin/spark-kernel/taskqueue"
)

// State is the session lifecycle state.
type State int

const (
	Uninitialized State = iota
	Started
	Stopped
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Started:
		return "started"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Option configures an Interpreter after config-driven initialization.
type Option func(*Interpreter)

// WithObserver overrides the config-selected observer.
func WithObserver(o observability.Observer) Option {
	return func(itp *Interpreter) { itp.observer = o }
}

// WithOutput sets the caller-visible output sink. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(itp *Interpreter) { itp.out = w }
}

// Interpreter is the session controller. It owns one engine handle, one task
// queue, and one capture buffer per started session. At most one session is
// live at a time; restart after Stop yields an entirely fresh engine.
type Interpreter struct {
	cfg      *Config
	factory  engine.Factory
	observer observability.Observer
	out      io.Writer

	mu        sync.Mutex
	state     State
	id        string
	eng       engine.Engine
	queue     *taskqueue.Queue
	capture   *stream.Capture
	completer engine.Completer

	// engineMu serializes direct engine access (AddJars, Bind,
	// UpdatePrintStreams) with the queue worker's unit execution.
	engineMu sync.Mutex
}

// New creates an Interpreter from configuration. The factory is invoked on
// every Start to produce a fresh engine. Functional options applied after
// initialization can override the observer and output sink.
func New(cfg *Config, factory engine.Factory, opts ...Option) (*Interpreter, error) {
	if factory == nil {
		return nil, ErrNilFactory
	}
	if cfg == nil {
		def := DefaultConfig()
		cfg = &def
	}

	name := cfg.Observer
	if name == "" {
		name = defaultObserver
	}
	observer, err := observability.GetObserver(name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve observer: %w", err)
	}

	itp := &Interpreter{
		cfg:      cfg,
		factory:  factory,
		observer: observer,
		out:      os.Stdout,
	}

	for _, opt := range opts {
		opt(itp)
	}

	return itp, nil
}

// State returns the current lifecycle state.
func (itp *Interpreter) State() State {
	itp.mu.Lock()
	defer itp.mu.Unlock()
	return itp.state
}

// ID returns the identity of the current session, or "" before the first
// Start. Each Start assigns a fresh UUIDv7.
func (itp *Interpreter) ID() string {
	itp.mu.Lock()
	defer itp.mu.Unlock()
	return itp.id
}

// Address returns the engine's opaque class-fetch address, usable by
// collaborating services to retrieve dynamically compiled classes.
func (itp *Interpreter) Address() (string, error) {
	itp.mu.Lock()
	defer itp.mu.Unlock()
	if itp.state != Started {
		return "", ErrNotStarted
	}
	return itp.eng.Address(), nil
}

// Start wires capture → tee → engine → task queue and primes default imports
// in silent mode. Fails if the session is already started. A stopped session
// may be started again; no prior bindings carry over.
func (itp *Interpreter) Start() error {
	itp.mu.Lock()
	if itp.state == Started {
		itp.mu.Unlock()
		return ErrAlreadyStarted
	}

	capture := stream.NewCapture()
	tee := stream.NewTee(itp.out, capture)

	eng, err := itp.factory(tee)
	if err != nil {
		itp.mu.Unlock()
		return fmt.Errorf("failed to start engine: %w", err)
	}

	queue := taskqueue.New(itp.runUnit)
	if err := queue.Start(); err != nil {
		eng.Close()
		itp.mu.Unlock()
		return fmt.Errorf("failed to start task queue: %w", err)
	}

	itp.id = uuid.Must(uuid.NewV7()).String()
	itp.eng = eng
	itp.queue = queue
	itp.capture = capture
	itp.completer = eng.Completer()
	itp.state = Started
	itp.mu.Unlock()

	for _, imp := range itp.cfg.DefaultImports {
		if h, err := queue.Add(execute.Unit{Code: imp, Silent: true}); err == nil {
			h.Wait(context.Background())
		}
	}

	if len(itp.cfg.Jars) > 0 {
		if err := itp.AddJars(itp.cfg.Jars...); err != nil {
			itp.Stop()
			return fmt.Errorf("failed to add startup jars: %w", err)
		}
	}

	itp.emit(EventStart, observability.LevelInfo, map[string]any{
		"session":         itp.ID(),
		"default_imports": len(itp.cfg.DefaultImports),
	})
	return nil
}

// Stop terminates the task queue, drops the completer, and releases the
// engine handle and all accumulated definitions. Idempotent.
func (itp *Interpreter) Stop() error {
	itp.mu.Lock()
	if itp.state != Started {
		itp.mu.Unlock()
		return nil
	}
	queue := itp.queue
	eng := itp.eng
	id := itp.id
	itp.mu.Unlock()

	queue.Stop()

	itp.mu.Lock()
	itp.queue = nil
	itp.completer = nil
	itp.capture = nil
	itp.eng = nil
	itp.state = Stopped
	itp.mu.Unlock()

	err := eng.Close()

	itp.emit(EventStop, observability.LevelInfo, map[string]any{"session": id})
	if err != nil {
		return fmt.Errorf("failed to close engine: %w", err)
	}
	return nil
}

// Interpret enqueues one code fragment and blocks until its outcome
// resolves. Cancelling ctx abandons the wait only; the unit still executes.
// Callers wanting a timeout compose it externally by racing Interrupt
// against a timer.
func (itp *Interpreter) Interpret(ctx context.Context, code string, silent bool) (execute.Result, error) {
	itp.mu.Lock()
	if itp.state != Started {
		itp.mu.Unlock()
		return execute.Result{}, ErrNotStarted
	}
	queue := itp.queue
	itp.mu.Unlock()

	h, err := queue.Add(execute.Unit{Code: code, Silent: silent})
	if err != nil {
		return execute.Result{}, fmt.Errorf("failed to enqueue unit: %w", err)
	}

	itp.emit(EventUnitQueued, observability.LevelVerbose, map[string]any{
		"code_length": len(code),
		"silent":      silent,
	})

	res, err := h.Wait(ctx)
	if err != nil {
		return execute.Result{}, err
	}

	itp.emit(EventUnitComplete, observability.LevelVerbose, map[string]any{
		"outcome": res.Outcome.String(),
	})
	return res, nil
}

// Interrupt force-terminates the in-flight unit, if any. Non-blocking;
// actual termination is best-effort and asynchronous. Safe to call from any
// goroutine, including concurrently with Interpret. A no-op when nothing is
// in flight or the session is not started.
func (itp *Interpreter) Interrupt() {
	itp.mu.Lock()
	queue := itp.queue
	itp.mu.Unlock()

	if queue == nil {
		return
	}
	queue.Interrupt()
	itp.emit(EventInterrupt, observability.LevelInfo, nil)
}

// Bind inserts or overwrites a named value in the engine's namespace
// immediately, bypassing the queue. The engine mutex excludes an in-flight
// unit for the duration of the bind.
func (itp *Interpreter) Bind(name, declaredType string, value any, transient bool) error {
	itp.mu.Lock()
	if itp.state != Started {
		itp.mu.Unlock()
		return ErrNotStarted
	}
	eng := itp.eng
	itp.mu.Unlock()

	itp.engineMu.Lock()
	defer itp.engineMu.Unlock()

	err := eng.Namespace().Bind(engine.Binding{
		Name:         name,
		DeclaredType: declaredType,
		Value:        value,
		Transient:    transient,
	})
	if err != nil {
		return fmt.Errorf("failed to bind %q: %w", name, err)
	}
	return nil
}

// Read returns the value currently bound to name. The second return is false
// when the name is unbound or explicitly empty.
func (itp *Interpreter) Read(name string) (any, bool, error) {
	itp.mu.Lock()
	if itp.state != Started {
		itp.mu.Unlock()
		return nil, false, ErrNotStarted
	}
	eng := itp.eng
	itp.mu.Unlock()

	itp.engineMu.Lock()
	defer itp.engineMu.Unlock()

	b, ok := eng.Namespace().Lookup(name)
	if !ok || b.Value == nil {
		return nil, false, nil
	}
	return b.Value, true, nil
}

// UpdatePrintStreams rebinds the console proxies so subsequently evaluated
// code routes its I/O through the supplied streams. The proxies are bound
// transient so they are excluded from any state capture the engine performs.
func (itp *Interpreter) UpdatePrintStreams(in io.Reader, out, errOut io.Writer) error {
	itp.mu.Lock()
	if itp.state != Started {
		itp.mu.Unlock()
		return ErrNotStarted
	}
	eng := itp.eng
	itp.mu.Unlock()

	itp.engineMu.Lock()
	defer itp.engineMu.Unlock()

	ns := eng.Namespace()
	proxies := []engine.Binding{
		{Name: "stdin", DeclaredType: "io.Reader", Value: in, Transient: true},
		{Name: "stdout", DeclaredType: "io.Writer", Value: out, Transient: true},
		{Name: "stderr", DeclaredType: "io.Writer", Value: errOut, Transient: true},
	}
	for _, p := range proxies {
		if p.Value == nil {
			continue
		}
		if err := ns.Bind(p); err != nil {
			return fmt.Errorf("failed to rebind %s proxy: %w", p.Name, err)
		}
	}
	return nil
}

// Completion extracts the trailing contiguous run of alphanumeric, '.' and
// '_' characters from code and delegates to the engine's completion
// subsystem at pos. Returns the cursor offset and candidate list.
func (itp *Interpreter) Completion(code string, pos int) (int, []string, error) {
	itp.mu.Lock()
	if itp.state != Started {
		itp.mu.Unlock()
		return 0, nil, ErrNotStarted
	}
	completer := itp.completer
	itp.mu.Unlock()

	cursor, candidates := completer.Complete(lastToken(code), pos)
	return cursor, candidates, nil
}

// lastToken returns the trailing run of identifier characters in code.
func lastToken(code string) string {
	i := len(code)
	for i > 0 {
		c := code[i-1]
		switch {
		case c == '_' || c == '.',
			'0' <= c && c <= '9',
			'a' <= c && c <= 'z',
			'A' <= c && c <= 'Z':
			i--
		default:
			return code[i:]
		}
	}
	return code
}

func (itp *Interpreter) emit(t observability.EventType, level observability.Level, data map[string]any) {
	itp.observer.OnEvent(context.Background(), observability.Event{
		Type:      t,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "interpreter",
		Data:      data,
	})
}
