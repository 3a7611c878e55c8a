// Package stream provides the output tee and the per-unit capture buffer the
// interpreter places between the engine and its callers.
package stream

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

// Tee duplicates every write to all of its sinks. Unlike io.MultiWriter it
// keeps writing to the remaining sinks after a sink fails, so the capture
// buffer always observes the bytes the engine produced. The first sink error
// is returned.
type Tee struct {
	mu    sync.Mutex
	sinks []io.Writer
}

// NewTee creates a Tee over the given sinks. Nil sinks are dropped.
func NewTee(sinks ...io.Writer) *Tee {
	kept := make([]io.Writer, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Tee{sinks: kept}
}

func (t *Tee) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var firstErr error
	for _, s := range t.sinks {
		if _, err := s.Write(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return len(p), firstErr
}

// Capture accumulates output for exactly one unit's execution. The buffer is
// owned by a single tee and never shared across units; ReadAndReset enforces
// the output-isolation invariant between consecutive units.
type Capture struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewCapture creates an empty capture buffer.
func NewCapture() *Capture {
	return &Capture{}
}

func (c *Capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

// ReadAndReset returns the captured text with leading and trailing whitespace
// trimmed, and empties the buffer so nothing leaks into the next unit.
func (c *Capture) ReadAndReset() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := strings.TrimSpace(c.buf.String())
	c.buf.Reset()
	return out
}

// Len reports the number of buffered bytes.
func (c *Capture) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Len()
}
