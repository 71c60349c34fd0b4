// Package model provides small deterministic sequence models. Their weights
// are generated from a seed, so they exercise the decode loop end to end
// without external checkpoints.
package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samcharles93/ai/internal/inference"
	"github.com/samcharles93/ai/internal/tokenizer"
)

// Kind names a model variant.
type Kind string

const (
	// KindRecurrent keeps a running state and ignores the position offset.
	KindRecurrent Kind = "recurrent"
	// KindPositional caches one entry per absolute position.
	KindPositional Kind = "positional"
)

var (
	ErrEmptyWindow     = errors.New("empty window")
	ErrPositionGap     = errors.New("position gap")
	ErrContextOverflow = errors.New("context overflow")
	ErrTokenRange      = errors.New("token id out of range")
)

const (
	DefaultHidden     = 32
	DefaultMaxContext = 2048
)

type Config struct {
	Vocab  int
	Hidden int
	Seed   int64
	// MaxContext bounds the positional cache. Zero means DefaultMaxContext.
	MaxContext int
	// Bias is added to the output scores of specific token ids.
	Bias map[tokenizer.TokenID]float32
}

func (c Config) withDefaults() (Config, error) {
	if c.Vocab <= 0 {
		return c, fmt.Errorf("vocab size must be positive, got %d", c.Vocab)
	}
	if c.Hidden <= 0 {
		c.Hidden = DefaultHidden
	}
	if c.MaxContext <= 0 {
		c.MaxContext = DefaultMaxContext
	}
	return c, nil
}

// weights is the parameter set shared by both variants.
type weights struct {
	vocab  int
	hidden int
	emb    Mat // [vocab x hidden]
	out    Mat // [hidden x vocab]
	bias   []float32
}

func newWeights(cfg Config) *weights {
	w := &weights{
		vocab:  cfg.Vocab,
		hidden: cfg.Hidden,
		emb:    NewMat(cfg.Vocab, cfg.Hidden),
		out:    NewMat(cfg.Hidden, cfg.Vocab),
		bias:   make([]float32, cfg.Vocab),
	}
	fillRand(&w.emb, cfg.Seed+11, 2)
	fillRand(&w.out, cfg.Seed+23, 4)
	for id, b := range cfg.Bias {
		if int(id) < cfg.Vocab {
			w.bias[id] = b
		}
	}
	return w
}

func (w *weights) embedding(id tokenizer.TokenID) ([]float32, error) {
	if int(id) >= w.vocab {
		return nil, fmt.Errorf("%w: %d >= %d", ErrTokenRange, id, w.vocab)
	}
	return w.emb.Row(int(id)), nil
}

// project returns a fresh score vector for hidden state h.
func (w *weights) project(h []float32) []float32 {
	scores := make([]float32, w.vocab)
	matVecT(scores, &w.out, h)
	for i, b := range w.bias {
		scores[i] += b
	}
	return scores
}

// New builds the named variant.
func New(kind Kind, cfg Config) (inference.SequenceModel, error) {
	switch Kind(strings.ToLower(string(kind))) {
	case KindRecurrent, "":
		return NewRecurrent(cfg)
	case KindPositional:
		return NewPositional(cfg)
	default:
		return nil, fmt.Errorf("unknown model kind %q", kind)
	}
}
