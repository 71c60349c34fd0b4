package inference

import (
	"time"

	"github.com/samcharles93/ai/internal/tokenizer"
)

// SequenceModel produces next-token scores for window, whose first token sits
// at absolute position pos. Variants that keep their own cache may ignore
// pos. The returned slice belongs to the caller and may be modified.
type SequenceModel interface {
	Forward(window []tokenizer.TokenID, pos int) ([]float32, error)
}

// Resetter is implemented by models with an internal cache that must be
// cleared before a new sequence.
type Resetter interface {
	Reset()
}

// Sink receives generated text. Both methods may block.
type Sink interface {
	WriteString(s string) (int, error)
	Flush() error
}

// State is the lifecycle of one run.
type State int

const (
	StateIdle State = iota
	StatePriming
	StateDecoding
	StateStopped
	StateExhausted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePriming:
		return "priming"
	case StateDecoding:
		return "decoding"
	case StateStopped:
		return "stopped"
	case StateExhausted:
		return "exhausted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateExhausted || s == StateFailed
}

type Stats struct {
	PromptTokens int
	// TokensGenerated counts every sampled token, the stop token included.
	TokensGenerated int
	Duration        time.Duration
	TPS             float64
	State           State
}

func (s *Stats) finish(start time.Time) {
	s.Duration = time.Since(start)
	if secs := s.Duration.Seconds(); secs > 0 {
		s.TPS = float64(s.TokensGenerated) / secs
	}
}
