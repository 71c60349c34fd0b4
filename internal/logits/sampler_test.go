package logits

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func ptr(v float64) *float64 { return &v }

// TestSamplerDeterminism ensures that two samplers configured identically
// produce identical sequences when sampling the same logits.
func TestSamplerDeterminism(t *testing.T) {
	t.Parallel()

	logs := []float32{0, 1, 2, 3, 4, 5}
	cfg := SamplerConfig{Seed: 42, Temperature: ptr(0.9), TopP: ptr(0.95)}
	s1 := NewSampler(cfg)
	s2 := NewSampler(cfg)
	for i := range 50 {
		a, err := s1.Sample(logs)
		if err != nil {
			t.Fatalf("sample: %v", err)
		}
		b, err := s2.Sample(logs)
		if err != nil {
			t.Fatalf("sample: %v", err)
		}
		if a != b {
			t.Fatalf("draw %d: expected deterministic sample, got %d vs %d", i, a, b)
		}
	}
}

func TestSamplerGreedy(t *testing.T) {
	t.Parallel()

	logs := []float32{-1, 5, 3, 7, 2}
	for _, cfg := range []SamplerConfig{
		{Seed: 99},
		{Seed: 99, Temperature: ptr(0)},
		{Seed: 99, Temperature: ptr(1e-8), TopP: ptr(0.1)},
	} {
		s := NewSampler(cfg)
		idx, err := s.Sample(logs)
		if err != nil {
			t.Fatalf("sample: %v", err)
		}
		if idx != 3 {
			t.Fatalf("expected greedy index 3, got %d", idx)
		}
	}
}

func TestSamplerGreedyAdvancesRandomStream(t *testing.T) {
	t.Parallel()

	s := NewSampler(SamplerConfig{Seed: 5})
	for range 3 {
		if _, err := s.Sample([]float32{1, 2}); err != nil {
			t.Fatalf("sample: %v", err)
		}
	}

	ref := rand.New(rand.NewSource(5))
	for range 3 {
		ref.Float64()
	}
	if got, want := s.rng.Float64(), ref.Float64(); got != want {
		t.Fatalf("random stream out of step: got %v want %v", got, want)
	}
}

// TestSamplerTopP checks that the nucleus keeps only the dominant candidate
// when its mass alone exceeds TopP.
func TestSamplerTopP(t *testing.T) {
	t.Parallel()

	logs := []float32{0, 0, 10, 0, 0}
	s := NewSampler(SamplerConfig{Seed: 7, Temperature: ptr(1), TopP: ptr(0.5)})
	for range 100 {
		idx, err := s.Sample(logs)
		if err != nil {
			t.Fatalf("sample: %v", err)
		}
		if idx != 2 {
			t.Fatalf("top-p sampling returned unexpected index %d", idx)
		}
	}
}

func TestSamplerTopPZeroesTail(t *testing.T) {
	t.Parallel()

	s := NewSampler(SamplerConfig{})
	prob := []float64{0.1, 0.5, 0.3, 0.1}
	s.topP(prob, 0.7)
	want := []float64{0, 0.5, 0.3, 0}
	for i := range want {
		if prob[i] != want[i] {
			t.Fatalf("unexpected nucleus: got %v want %v", prob, want)
		}
	}
}

func TestSamplerFollowsDistribution(t *testing.T) {
	t.Parallel()

	// probabilities 0.25 and 0.75
	logs := []float32{0, float32(math.Log(3))}
	s := NewSampler(SamplerConfig{Seed: 1, Temperature: ptr(1)})
	const n = 4000
	ones := 0
	for range n {
		idx, err := s.Sample(logs)
		if err != nil {
			t.Fatalf("sample: %v", err)
		}
		if idx == 1 {
			ones++
		}
	}
	if frac := float64(ones) / n; frac < 0.7 || frac > 0.8 {
		t.Fatalf("unexpected frequency of index 1: %.3f", frac)
	}
}

func TestSamplerErrors(t *testing.T) {
	t.Parallel()

	s := NewSampler(SamplerConfig{Temperature: ptr(0.8)})
	if _, err := s.Sample(nil); !errors.Is(err, ErrEmptyLogits) {
		t.Fatalf("expected ErrEmptyLogits, got %v", err)
	}
	nan := float32(math.NaN())
	if _, err := s.Sample([]float32{nan, nan}); !errors.Is(err, ErrDegenerate) {
		t.Fatalf("expected ErrDegenerate, got %v", err)
	}
	inf := float32(math.Inf(-1))
	if _, err := s.Sample([]float32{inf, inf}); !errors.Is(err, ErrDegenerate) {
		t.Fatalf("expected ErrDegenerate for all -Inf, got %v", err)
	}

	greedy := NewSampler(SamplerConfig{})
	if _, err := greedy.Sample([]float32{nan}); !errors.Is(err, ErrDegenerate) {
		t.Fatalf("expected ErrDegenerate for greedy NaN, got %v", err)
	}
}
