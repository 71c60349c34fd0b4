package logits

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"slices"

	"github.com/samcharles93/ai/internal/tokenizer"
)

var (
	ErrEmptyLogits = errors.New("empty logits")
	ErrDegenerate  = errors.New("degenerate distribution")
)

// minTemperature is the threshold below which sampling is arg-max.
const minTemperature = 1e-7

// SamplerConfig configures the behaviour of a Sampler. A nil Temperature
// selects arg-max decoding; a nil TopP disables nucleus truncation.
type SamplerConfig struct {
	Seed        uint64
	Temperature *float64
	TopP        *float64
}

// Greedy reports whether the configuration reduces to arg-max decoding.
func (c SamplerConfig) Greedy() bool {
	return c.Temperature == nil || *c.Temperature < minTemperature
}

type Sampler struct {
	rng   *rand.Rand
	cfg   SamplerConfig
	prob  []float64
	order []int
}

// NewSampler returns a new sampler with the provided configuration.
func NewSampler(cfg SamplerConfig) *Sampler {
	return &Sampler{
		rng: rand.New(rand.NewSource(int64(cfg.Seed))),
		cfg: cfg,
	}
}

func (s *Sampler) Config() SamplerConfig { return s.cfg }

// Sample draws one token id from logits:
//
//  1. One value is drawn from the random stream, whatever the path taken,
//     so that a seed reproduces the same sequence for the same logits.
//  2. Greedy configurations return the arg-max.
//  3. Otherwise logits are scaled by 1/temperature and turned into
//     probabilities with a max-subtracted softmax.
//  4. With 0 < TopP < 1, candidates are visited in descending probability
//     and dropped once the kept mass reaches TopP.
//  5. The drawn value picks an index weighted by the kept mass.
func (s *Sampler) Sample(logits []float32) (tokenizer.TokenID, error) {
	if len(logits) == 0 {
		return 0, ErrEmptyLogits
	}
	r := s.rng.Float64()

	if s.cfg.Greedy() {
		idx := argmax(logits)
		if math.IsNaN(float64(logits[idx])) {
			return 0, fmt.Errorf("%w: NaN logits", ErrDegenerate)
		}
		return tokenizer.TokenID(idx), nil
	}

	if cap(s.prob) < len(logits) {
		s.prob = make([]float64, len(logits))
	}
	prob := s.prob[:len(logits)]
	temp := *s.cfg.Temperature
	sum := softmax(logits, 1/temp, prob)
	if sum == 0 || !isFinite(sum) {
		return 0, fmt.Errorf("%w: softmax normalizer %v", ErrDegenerate, sum)
	}

	if p := s.cfg.TopP; p != nil && *p > 0 && *p < 1 {
		s.topP(prob, *p)
	}

	var total float64
	for _, v := range prob {
		total += v
	}
	if total <= 0 || !isFinite(total) {
		return 0, fmt.Errorf("%w: total mass %v", ErrDegenerate, total)
	}

	target := r * total
	last := -1
	var c float64
	for i, v := range prob {
		if v <= 0 {
			continue
		}
		c += v
		last = i
		if target < c {
			return tokenizer.TokenID(i), nil
		}
	}
	// rounding can leave target just past the accumulated mass
	return tokenizer.TokenID(last), nil
}

// topP zeroes every probability outside the smallest descending prefix whose
// mass reaches p.
func (s *Sampler) topP(prob []float64, p float64) {
	if cap(s.order) < len(prob) {
		s.order = make([]int, len(prob))
	}
	order := s.order[:len(prob)]
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case prob[a] > prob[b]:
			return -1
		case prob[a] < prob[b]:
			return 1
		default:
			return 0
		}
	})
	var cum float64
	for _, idx := range order {
		if cum >= p {
			prob[idx] = 0
			continue
		}
		cum += prob[idx]
	}
}
