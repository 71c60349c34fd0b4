package logits

import (
	"errors"
	"fmt"

	"github.com/samcharles93/ai/internal/tokenizer"
)

var ErrInvalidPenalty = errors.New("invalid repeat penalty")

// PenaltyConfig controls the repetition penalty applied before sampling.
// A Factor of 1 leaves scores untouched; the zero value is treated the same.
type PenaltyConfig struct {
	Factor float32
	LastN  int
}

// Enabled reports whether the penalty changes anything.
func (c PenaltyConfig) Enabled() bool {
	return c.Factor != 1 && c.Factor != 0
}

// Window returns the trailing LastN tokens of history, or all of them when
// the history is shorter.
func (c PenaltyConfig) Window(history []tokenizer.TokenID) []tokenizer.TokenID {
	if c.LastN <= 0 {
		return nil
	}
	start := max(len(history)-c.LastN, 0)
	return history[start:]
}

// ApplyRepeatPenalty pushes the score of every distinct in-range id in context
// toward zero: non-negative scores are divided by penalty, negative ones
// multiplied. Ids outside the vocabulary are ignored.
func ApplyRepeatPenalty(logits []float32, penalty float32, context []tokenizer.TokenID) error {
	if !(penalty > 0) || !isFinite(penalty) {
		return fmt.Errorf("%w: %v", ErrInvalidPenalty, penalty)
	}
	if penalty == 1 {
		return nil
	}
	seen := make(map[tokenizer.TokenID]struct{}, len(context))
	for _, id := range context {
		if int(id) >= len(logits) {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if logits[id] >= 0 {
			logits[id] /= penalty
		} else {
			logits[id] *= penalty
		}
	}
	return nil
}
