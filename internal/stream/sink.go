// Package stream provides sinks for generated text.
package stream

import (
	"io"
	"strings"
	"sync"
)

// Buffer collects everything written to it. It is safe for concurrent use.
type Buffer struct {
	mu      sync.Mutex
	b       strings.Builder
	writes  int
	flushes int
}

func (b *Buffer) WriteString(s string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes++
	return b.b.WriteString(s)
}

func (b *Buffer) Flush() error {
	b.mu.Lock()
	b.flushes++
	b.mu.Unlock()
	return nil
}

func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Counts returns the number of writes and flushes seen so far.
func (b *Buffer) Counts() (writes, flushes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes, b.flushes
}

// Writer adapts an io.Writer. Flush is forwarded when the writer has a
// Flush method, as bufio.Writer does.
type Writer struct {
	W io.Writer
}

func (w Writer) WriteString(s string) (int, error) {
	return io.WriteString(w.W, s)
}

func (w Writer) Flush() error {
	switch f := w.W.(type) {
	case interface{ Flush() error }:
		return f.Flush()
	case interface{ Flush() }:
		f.Flush()
	}
	return nil
}

// Func adapts a callback, for example one that forwards fragments as events.
type Func func(fragment string) error

func (f Func) WriteString(s string) (int, error) {
	if err := f(s); err != nil {
		return 0, err
	}
	return len(s), nil
}

func (Func) Flush() error { return nil }

// Tee writes every fragment to all sinks, stopping at the first error.
type Tee []interface {
	WriteString(string) (int, error)
	Flush() error
}

func (t Tee) WriteString(s string) (int, error) {
	for _, sink := range t {
		if _, err := sink.WriteString(s); err != nil {
			return 0, err
		}
	}
	return len(s), nil
}

func (t Tee) Flush() error {
	for _, sink := range t {
		if err := sink.Flush(); err != nil {
			return err
		}
	}
	return nil
}
