// Package eval provides a small self-contained expression engine satisfying
// the engine contract. It evaluates integer expressions with named bindings
// and is used by cmd/repl and integration tests; production deployments
// plug in a real compiler-backed engine instead.
package eval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hunglin/spark-kernel/engine"
)

// Stats counts engine-internal operations, exposed for observability of the
// hot-swap protocol.
type Stats struct {
	Reinits     int
	SideLoaded  int
	Invalidated int
}

// Engine is an in-process expression evaluator. One statement per line:
//
//	val x = 1 + 2    define a binding (prints "x: Int = 3")
//	x = x * 2        reassign
//	x + 40           evaluate (prints "resN: Int = ...")
//	import foo.bar   accepted, no effect
//	sleep 250        block for 250ms or until the context is severed
//
// Division by zero records an ArithmeticException in the last-exception
// slot; unknown names raise compile diagnostics.
type Engine struct {
	mu     sync.Mutex
	out    io.Writer
	ns     *namespace
	rep    *reporter
	paths  *pathConfig
	addr   string
	closed bool

	resCount   int
	reinits    int
	sideLoaded int
}

// New creates an engine writing evaluation output to out.
func New(out io.Writer) *Engine {
	if out == nil {
		out = io.Discard
	}
	return &Engine{
		out:   out,
		ns:    newNamespace(),
		rep:   &reporter{},
		paths: &pathConfig{},
		addr:  "eval://in-process/" + uuid.NewString(),
	}
}

// Run evaluates one code fragment, a statement per line. Evaluation stops at
// the first statement that fails or is incomplete.
func (e *Engine) Run(ctx context.Context, code string, silent bool) (engine.Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return engine.StatusError, errors.New("engine is closed")
	}
	e.rep.clear()

	for _, line := range strings.Split(code, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		status := e.runStatement(ctx, line, silent)
		if status != engine.StatusSuccess {
			return status, nil
		}
		if ctx.Err() != nil {
			return engine.StatusSuccess, nil
		}
	}
	return engine.StatusSuccess, nil
}

func (e *Engine) runStatement(ctx context.Context, line string, silent bool) engine.Status {
	if strings.HasPrefix(line, "import ") {
		return engine.StatusSuccess
	}
	if rest, ok := strings.CutPrefix(line, "sleep "); ok {
		return e.runSleep(ctx, rest)
	}

	name, expr, isDef := splitDefinition(line)
	if isDef && strings.TrimSpace(expr) == "" {
		return engine.StatusIncomplete
	}
	target := expr
	if !isDef {
		target = line
	}

	value, err := evalExpr(target, e.ns)
	switch {
	case err == nil:
	case errors.Is(err, errIncomplete):
		return engine.StatusIncomplete
	default:
		var thrown *thrownError
		if errors.As(err, &thrown) {
			e.ns.setLastException(thrown.detail)
		} else {
			e.rep.set()
			fmt.Fprintf(e.out, "error: %s\n", err)
		}
		return engine.StatusError
	}

	label := name
	if label == "" {
		label = fmt.Sprintf("res%d", e.resCount)
		e.resCount++
	}
	e.ns.Bind(engine.Binding{Name: label, DeclaredType: "Int", Value: value})
	if !silent {
		fmt.Fprintf(e.out, "%s: Int = %d\n", label, value)
	}
	return engine.StatusSuccess
}

func (e *Engine) runSleep(ctx context.Context, arg string) engine.Status {
	ms, err := evalExpr(strings.TrimSpace(arg), e.ns)
	if err != nil {
		e.rep.set()
		fmt.Fprintf(e.out, "error: bad sleep duration: %s\n", arg)
		return engine.StatusError
	}
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
	case <-ctx.Done():
	}
	return engine.StatusSuccess
}

// splitDefinition recognizes "val name = expr" and "name = expr" forms.
func splitDefinition(line string) (name, expr string, ok bool) {
	rest, hasVal := strings.CutPrefix(line, "val ")
	if !hasVal {
		rest = line
	}
	eq := strings.Index(rest, "=")
	if eq < 0 || strings.HasPrefix(rest[eq:], "==") {
		return "", "", false
	}
	name = strings.TrimSpace(rest[:eq])
	if !isIdentifier(name) {
		return "", "", false
	}
	return name, rest[eq+1:], true
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case i > 0 && '0' <= c && c <= '9':
		default:
			return false
		}
	}
	return true
}

func (e *Engine) Namespace() engine.Namespace { return e.ns }
func (e *Engine) Reporter() engine.Reporter   { return e.rep }
func (e *Engine) Paths() engine.PathConfig    { return e.paths }
func (e *Engine) Completer() engine.Completer { return &completer{ns: e.ns} }

// SideLoad records the archives as reachable at execution time.
func (e *Engine) SideLoad(archives ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New("engine is closed")
	}
	e.sideLoaded += len(archives)
	return nil
}

// Reinitialize resets the symbol table. Binding values stay reachable
// through the namespace until rebound.
func (e *Engine) Reinitialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New("engine is closed")
	}
	e.reinits++
	return nil
}

func (e *Engine) Address() string {
	return e.addr
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Stats returns counters for engine-internal operations.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Reinits:     e.reinits,
		SideLoaded:  e.sideLoaded,
		Invalidated: e.paths.invalidated(),
	}
}
