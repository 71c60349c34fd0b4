package api

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
)

// SSEWriter is an inference.Sink that forwards each fragment as a
// server-sent "delta" event.
type SSEWriter struct {
	w       io.Writer
	flusher func()
	id      string
	seq     int
}

func NewSSEWriter(c *echo.Context, id string) (*SSEWriter, error) {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")

	flusher, ok := res.(interface{ Flush() })
	if !ok {
		return nil, fmt.Errorf("streaming unsupported")
	}
	return &SSEWriter{w: res, flusher: flusher.Flush, id: id}, nil
}

func (s *SSEWriter) WriteString(delta string) (int, error) {
	if err := s.send(streamEvent{Type: "delta", Delta: delta}); err != nil {
		return 0, err
	}
	return len(delta), nil
}

func (s *SSEWriter) Flush() error {
	s.flush()
	return nil
}

// Complete sends the final response followed by the [DONE] marker.
func (s *SSEWriter) Complete(resp GenerateResponse) error {
	if err := s.send(streamEvent{Type: "done", Response: &resp}); err != nil {
		return err
	}
	if _, err := io.WriteString(s.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s *SSEWriter) Failed(errType string, err error) error {
	if err := s.send(streamEvent{
		Type:  "error",
		Error: &ResponseError{Message: err.Error(), Type: errType},
	}); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s *SSEWriter) send(ev streamEvent) error {
	s.seq++
	ev.ID = s.id
	ev.Seq = s.seq
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.w, "data: %s\n\n", b)
	return err
}

func (s *SSEWriter) flush() {
	if s.flusher != nil {
		s.flusher()
	}
}
