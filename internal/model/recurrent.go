package model

import (
	"github.com/samcharles93/ai/internal/tokenizer"
)

const recurrentDecay = 0.5

// Recurrent folds every token it sees into one hidden state, so the position
// offset passed to Forward is ignored. The first call after Reset must carry
// the whole prompt.
type Recurrent struct {
	w     *weights
	state []float32
	seen  int
}

func NewRecurrent(cfg Config) (*Recurrent, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Recurrent{
		w:     newWeights(cfg),
		state: make([]float32, cfg.Hidden),
	}, nil
}

func (m *Recurrent) Forward(window []tokenizer.TokenID, _ int) ([]float32, error) {
	if len(window) == 0 {
		return nil, ErrEmptyWindow
	}
	for _, id := range window {
		if err := m.step(id); err != nil {
			return nil, err
		}
	}
	return m.w.project(m.state), nil
}

// ForwardToken advances the state by one token.
func (m *Recurrent) ForwardToken(id tokenizer.TokenID) ([]float32, error) {
	if err := m.step(id); err != nil {
		return nil, err
	}
	return m.w.project(m.state), nil
}

func (m *Recurrent) step(id tokenizer.TokenID) error {
	emb, err := m.w.embedding(id)
	if err != nil {
		return err
	}
	for i := range m.state {
		m.state[i] = recurrentDecay*m.state[i] + emb[i]
	}
	tanhInPlace(m.state)
	m.seen++
	return nil
}

func (m *Recurrent) Reset() {
	clear(m.state)
	m.seen = 0
}

// Seen returns how many tokens have been folded in since the last Reset.
func (m *Recurrent) Seen() int { return m.seen }

func (m *Recurrent) VocabSize() int { return m.w.vocab }
