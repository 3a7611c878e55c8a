package stream_test

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/hunglin/spark-kernel/stream"
)

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("sink failed")
}

func TestTee_DuplicatesToAllSinks(t *testing.T) {
	var a, b bytes.Buffer
	tee := stream.NewTee(&a, &b)

	n, err := tee.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != 5 {
		t.Errorf("got n=%d, want 5", n)
	}
	if a.String() != "hello" {
		t.Errorf("sink a got %q, want %q", a.String(), "hello")
	}
	if b.String() != "hello" {
		t.Errorf("sink b got %q, want %q", b.String(), "hello")
	}
}

func TestTee_DropsNilSinks(t *testing.T) {
	var a bytes.Buffer
	tee := stream.NewTee(nil, &a, nil)

	if _, err := tee.Write([]byte("x")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if a.String() != "x" {
		t.Errorf("got %q, want %q", a.String(), "x")
	}
}

func TestTee_KeepsWritingAfterSinkFailure(t *testing.T) {
	var a bytes.Buffer
	tee := stream.NewTee(failingWriter{}, &a)

	_, err := tee.Write([]byte("data"))
	if err == nil {
		t.Error("expected first sink's error to be returned")
	}
	if a.String() != "data" {
		t.Errorf("second sink got %q, want %q despite first sink failing", a.String(), "data")
	}
}

func TestCapture_ReadAndReset(t *testing.T) {
	c := stream.NewCapture()

	fmt.Fprint(c, "  res0: Int = 2\n")

	if got := c.ReadAndReset(); got != "res0: Int = 2" {
		t.Errorf("got %q, want trimmed %q", got, "res0: Int = 2")
	}
	if c.Len() != 0 {
		t.Errorf("buffer has %d bytes after reset, want 0", c.Len())
	}
	if got := c.ReadAndReset(); got != "" {
		t.Errorf("second read got %q, want empty", got)
	}
}

func TestCapture_NoLeakBetweenUnits(t *testing.T) {
	c := stream.NewCapture()

	fmt.Fprint(c, "first")
	_ = c.ReadAndReset()

	fmt.Fprint(c, "second")
	if got := c.ReadAndReset(); got != "second" {
		t.Errorf("got %q, want %q", got, "second")
	}
}

func TestCapture_ConcurrentWrites(t *testing.T) {
	c := stream.NewCapture()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				fmt.Fprint(c, "x")
			}
		}()
	}
	wg.Wait()

	if got := c.ReadAndReset(); len(got) != 1000 {
		t.Errorf("got %d bytes, want 1000", len(got))
	}
}
