package stream

import (
	"errors"
	"io"
	"time"

	"github.com/smallnest/ringbuffer"
)

const DefaultPipeSize = 4 << 10

// Pipe is an asynchronous sink backed by a blocking ring buffer. Generation
// blocks once the buffer is full, while Drain copies to the terminal at its
// own pace.
type Pipe struct {
	rb *ringbuffer.RingBuffer
}

func NewPipe(size int) *Pipe {
	if size <= 0 {
		size = DefaultPipeSize
	}
	return &Pipe{rb: ringbuffer.New(size).SetBlocking(true)}
}

func (p *Pipe) WriteString(s string) (int, error) {
	return p.rb.Write([]byte(s))
}

// Flush waits until the reader has consumed everything written so far.
func (p *Pipe) Flush() error {
	return p.rb.Flush()
}

func (p *Pipe) Read(b []byte) (int, error) {
	return p.rb.Read(b)
}

// Close ends the stream. The reader sees io.EOF after the remaining bytes.
func (p *Pipe) Close() error {
	p.rb.CloseWriter()
	return nil
}

// CloseWithError makes pending and future reads and writes fail with err.
func (p *Pipe) CloseWithError(err error) {
	p.rb.CloseWithError(err)
}

// Drain copies the pipe to w until Close. With a non-zero pace it writes at
// most chunk bytes per tick, which gives a steady typing effect.
func (p *Pipe) Drain(w io.Writer, chunk int, pace time.Duration) error {
	if chunk <= 0 {
		chunk = 512
	}
	var tick <-chan time.Time
	if pace > 0 {
		t := time.NewTicker(pace)
		defer t.Stop()
		tick = t.C
	}
	buf := make([]byte, chunk)
	for {
		n, err := p.rb.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				p.rb.CloseWithError(werr)
				return werr
			}
			if f, ok := w.(interface{ Flush() error }); ok {
				if ferr := f.Flush(); ferr != nil {
					p.rb.CloseWithError(ferr)
					return ferr
				}
			}
			if tick != nil {
				<-tick
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
