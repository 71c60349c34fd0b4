package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/samcharles93/ai/internal/inference"
	"github.com/samcharles93/ai/internal/stream"
)

type StreamMode string

const (
	StreamInstant StreamMode = "instant"
	StreamSmooth  StreamMode = "smooth"
	StreamQuiet   StreamMode = "quiet"
)

const (
	smoothChunk = 4
	smoothPace  = 12 * time.Millisecond
)

func parseStreamMode(s string) (StreamMode, error) {
	switch m := StreamMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return StreamInstant, nil
	case StreamInstant, StreamSmooth, StreamQuiet:
		return m, nil
	default:
		return "", fmt.Errorf("unknown stream mode %q (instant, smooth, quiet)", s)
	}
}

// outputSink is an inference.Sink that owns terminal output for one run.
// Close must be called once generation returns, even on error.
type outputSink interface {
	inference.Sink
	Close() error
}

// newOutputSink builds the sink for mode. With raw set, control characters
// are escaped so the output stays on one line.
func newOutputSink(mode StreamMode, raw bool, w io.Writer) outputSink {
	switch mode {
	case StreamQuiet:
		return &quietSink{w: w, raw: raw}
	case StreamSmooth:
		return newSmoothSink(w, raw)
	default:
		return &instantSink{w: stream.Writer{W: bufio.NewWriterSize(w, 4096)}, raw: raw}
	}
}

// instantSink writes every fragment as soon as it is produced.
type instantSink struct {
	w   stream.Writer
	raw bool
}

func (s *instantSink) WriteString(text string) (int, error) {
	out := text
	if s.raw {
		out = escapeRawOutput(text)
	}
	if _, err := s.w.WriteString(out); err != nil {
		return 0, err
	}
	return len(text), s.w.Flush()
}

func (s *instantSink) Flush() error { return s.w.Flush() }
func (s *instantSink) Close() error { return s.w.Flush() }

// quietSink prints the whole text at Close.
type quietSink struct {
	w   io.Writer
	raw bool
	buf stream.Buffer
}

func (s *quietSink) WriteString(text string) (int, error) { return s.buf.WriteString(text) }
func (s *quietSink) Flush() error                         { return nil }

func (s *quietSink) Close() error {
	text := s.buf.String()
	if s.raw {
		text = escapeRawOutput(text)
	}
	_, err := io.WriteString(s.w, text)
	return err
}

// smoothSink hands fragments to a ring-buffer pipe that a goroutine drains
// at a steady pace. Generation blocks once the pipe is full.
type smoothSink struct {
	pipe *stream.Pipe
	raw  bool
	done chan error
}

func newSmoothSink(w io.Writer, raw bool) *smoothSink {
	s := &smoothSink{
		pipe: stream.NewPipe(0),
		raw:  raw,
		done: make(chan error, 1),
	}
	go func() {
		s.done <- s.pipe.Drain(w, smoothChunk, smoothPace)
	}()
	return s
}

func (s *smoothSink) WriteString(text string) (int, error) {
	out := text
	if s.raw {
		out = escapeRawOutput(text)
	}
	if _, err := s.pipe.WriteString(out); err != nil {
		return 0, err
	}
	return len(text), nil
}

func (s *smoothSink) Flush() error { return s.pipe.Flush() }

func (s *smoothSink) Close() error {
	if err := s.pipe.Close(); err != nil {
		return err
	}
	return <-s.done
}

func escapeRawOutput(s string) string {
	var b strings.Builder
	for _, r := range s {
		b.WriteString(escapeRawOutputRune(r))
	}
	return b.String()
}

func escapeRawOutputRune(r rune) string {
	switch r {
	case '\n':
		return `\n`
	case '\r':
		return `\r`
	case '\t':
		return `\t`
	case '\\':
		return `\\`
	default:
		if strconv.IsPrint(r) {
			return string(r)
		}
		return fmt.Sprintf(`\u%04x`, r)
	}
}
