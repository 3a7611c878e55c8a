package eval

import (
	"sort"
	"strings"
	"sync"

	"github.com/hunglin/spark-kernel/engine"
)

// namespace holds top-level bindings in definition order plus the single-slot
// last-exception mailbox.
type namespace struct {
	mu       sync.Mutex
	bindings map[string]engine.Binding
	order    []string
	lastExc  *engine.Thrown
}

func newNamespace() *namespace {
	return &namespace{bindings: make(map[string]engine.Binding)}
}

func (n *namespace) Bind(b engine.Binding) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.bindings[b.Name]; !exists {
		n.order = append(n.order, b.Name)
	}
	n.bindings[b.Name] = b
	return nil
}

func (n *namespace) Lookup(name string) (engine.Binding, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	b, ok := n.bindings[name]
	return b, ok
}

func (n *namespace) Names() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	names := make([]string, len(n.order))
	copy(names, n.order)
	return names
}

func (n *namespace) TakeLastException() *engine.Thrown {
	n.mu.Lock()
	defer n.mu.Unlock()

	t := n.lastExc
	n.lastExc = nil
	return t
}

func (n *namespace) setLastException(t *engine.Thrown) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lastExc = t
}

// reporter tracks whether the last run left unresolved compile diagnostics.
type reporter struct {
	mu        sync.Mutex
	hasErrors bool
}

func (r *reporter) HasErrors() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasErrors
}

func (r *reporter) set() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hasErrors = true
}

func (r *reporter) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hasErrors = false
}

// pathConfig is the engine's resolution-path configuration. The evaluator
// keeps no real metadata cache, so Invalidate only counts per-entry drops.
type pathConfig struct {
	mu          sync.Mutex
	entries     []string
	invalidates int
}

func (p *pathConfig) Entries() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := make([]string, len(p.entries))
	copy(entries, p.entries)
	return entries
}

func (p *pathConfig) SetEntries(entries []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.entries = make([]string, len(entries))
	copy(p.entries, entries)
}

func (p *pathConfig) Invalidate(entries []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invalidates += len(entries)
}

func (p *pathConfig) invalidated() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.invalidates
}

// completer matches defined names by prefix.
type completer struct {
	ns *namespace
}

func (c *completer) Complete(text string, pos int) (int, []string) {
	names := c.ns.Names()
	var candidates []string
	for _, name := range names {
		if text == "" || strings.HasPrefix(name, text) {
			candidates = append(candidates, name)
		}
	}
	sort.Strings(candidates)
	return pos, candidates
}
