package model

import (
	"github.com/samcharles93/ai/internal/tokenizer"
)

// TokenModel advances by one token per call and owns its cache.
type TokenModel interface {
	ForwardToken(id tokenizer.TokenID) ([]float32, error)
	Reset()
}

// Stepper feeds a window to a TokenModel one token at a time and returns the
// scores after the last one. The position offset is ignored.
type Stepper struct {
	M TokenModel
}

func (s Stepper) Forward(window []tokenizer.TokenID, _ int) ([]float32, error) {
	if len(window) == 0 {
		return nil, ErrEmptyWindow
	}
	var scores []float32
	for _, id := range window {
		var err error
		scores, err = s.M.ForwardToken(id)
		if err != nil {
			return nil, err
		}
	}
	return scores, nil
}

func (s Stepper) Reset() { s.M.Reset() }
