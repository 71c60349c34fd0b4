package model

import (
	"math"
	"math/rand"
)

// Mat is a dense row-major f32 matrix.
type Mat struct {
	R, C   int
	Stride int
	Data   []float32
}

func NewMat(r, c int) Mat {
	if r < 0 || c < 0 {
		panic("negative dimension for matrix")
	}
	return Mat{R: r, C: c, Stride: c, Data: make([]float32, r*c)}
}

func (m *Mat) Row(i int) []float32 {
	if i < 0 || i >= m.R {
		panic("row index out of range")
	}
	start := i * m.Stride
	return m.Data[start : start+m.C]
}

// fillRand fills m with values uniformly drawn from (-scale/2, scale/2).
func fillRand(m *Mat, seed int64, scale float32) {
	rng := rand.New(rand.NewSource(seed))
	for i := range m.Data {
		m.Data[i] = (rng.Float32() - 0.5) * scale
	}
}

// matVecT computes dst = x·W for W of shape [len(x) x len(dst)].
func matVecT(dst []float32, w *Mat, x []float32) {
	if len(x) != w.R || len(dst) != w.C {
		panic("matvec shape mismatch")
	}
	clear(dst)
	for i, xv := range x {
		if xv == 0 {
			continue
		}
		row := w.Row(i)
		for j, wv := range row {
			dst[j] += xv * wv
		}
	}
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func softmaxInPlace(x []float32) {
	if len(x) == 0 {
		return
	}
	maxv := x[0]
	for _, v := range x[1:] {
		maxv = max(maxv, v)
	}
	var sum float64
	for i := range x {
		v := math.Exp(float64(x[i] - maxv))
		x[i] = float32(v)
		sum += v
	}
	inv := float32(1 / sum)
	for i := range x {
		x[i] *= inv
	}
}

// positionEncoding writes the sinusoidal encoding of pos into dst.
func positionEncoding(dst []float32, pos int) {
	h := len(dst)
	for i := 0; i < h; i += 2 {
		freq := math.Pow(10000, -float64(i)/float64(h))
		angle := float64(pos) * freq
		dst[i] = float32(math.Sin(angle))
		if i+1 < h {
			dst[i+1] = float32(math.Cos(angle))
		}
	}
}

func tanhInPlace(x []float32) {
	for i, v := range x {
		x[i] = float32(math.Tanh(float64(v)))
	}
}
