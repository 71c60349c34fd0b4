package model

import (
	"fmt"
	"math"

	"github.com/samcharles93/ai/internal/tokenizer"
)

// Positional keeps one cache entry per absolute position and attends over
// all of them. Forward must be called with pos equal to the number of cached
// positions, or lower to rewind; skipping ahead is an error.
type Positional struct {
	w          *weights
	maxContext int
	cache      [][]float32
	attn       []float32
	ctx        []float32
}

func NewPositional(cfg Config) (*Positional, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Positional{
		w:          newWeights(cfg),
		maxContext: cfg.MaxContext,
		ctx:        make([]float32, cfg.Hidden),
	}, nil
}

func (m *Positional) Forward(window []tokenizer.TokenID, pos int) ([]float32, error) {
	if len(window) == 0 {
		return nil, ErrEmptyWindow
	}
	if pos < 0 || pos > len(m.cache) {
		return nil, fmt.Errorf("%w: pos %d with %d cached", ErrPositionGap, pos, len(m.cache))
	}
	if end := pos + len(window); end > m.maxContext {
		return nil, fmt.Errorf("%w: %d > %d", ErrContextOverflow, end, m.maxContext)
	}

	m.cache = m.cache[:pos]
	for i, id := range window {
		emb, err := m.w.embedding(id)
		if err != nil {
			m.cache = m.cache[:pos]
			return nil, err
		}
		entry := make([]float32, m.w.hidden)
		positionEncoding(entry, pos+i)
		for j := range entry {
			entry[j] += emb[j]
		}
		m.cache = append(m.cache, entry)
	}
	return m.w.project(m.attend()), nil
}

// attend returns the attention-weighted sum of the cache, queried by the
// newest entry.
func (m *Positional) attend() []float32 {
	q := m.cache[len(m.cache)-1]
	if cap(m.attn) < len(m.cache) {
		m.attn = make([]float32, len(m.cache), 2*len(m.cache))
	}
	attn := m.attn[:len(m.cache)]
	scale := float32(1 / math.Sqrt(float64(m.w.hidden)))
	for i, k := range m.cache {
		attn[i] = dot(q, k) * scale
	}
	softmaxInPlace(attn)

	clear(m.ctx)
	for i, k := range m.cache {
		a := attn[i]
		for j, v := range k {
			m.ctx[j] += a * v
		}
	}
	return m.ctx
}

func (m *Positional) Reset() {
	m.cache = m.cache[:0]
}

// Len returns the number of cached positions.
func (m *Positional) Len() int { return len(m.cache) }

func (m *Positional) VocabSize() int { return m.w.vocab }
