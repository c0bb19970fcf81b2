package embed

import (
	"context"
	"crypto/sha256"
	"math"
)

// Mock is a deterministic, dependency-free Embedder used by tests and by
// the zero-config local fallback. It hashes each input text into a
// pseudo-random but stable unit vector — same text always yields the
// same vector, letting cosine-similarity tests be written against fixed
// expectations without a live model.
type Mock struct {
	dimensions int
}

// NewMock creates a deterministic embedder producing vectors of dim dimensions.
func NewMock(dim int) *Mock {
	return &Mock{dimensions: dim}
}

func (m *Mock) Dimensions() int { return m.dimensions }

func (m *Mock) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	vecs := make([][]float64, len(texts))
	for i, t := range texts {
		vecs[i] = deterministicVector(t, m.dimensions)
	}
	return vecs, nil
}

// deterministicVector derives a cosine-normalized vector from text by
// expanding repeated SHA-256 digests into floats in [-1, 1].
func deterministicVector(text string, dim int) []float64 {
	v := make([]float64, dim)
	seed := []byte(text)
	sum := sha256.Sum256(seed)
	buf := sum[:]
	for i := 0; i < dim; i++ {
		if i > 0 && i%len(buf) == 0 {
			next := sha256.Sum256(buf)
			buf = next[:]
		}
		b := buf[i%len(buf)]
		v[i] = float64(int(b)-128) / 128.0
	}
	return normalize(v)
}

func normalize(v []float64) []float64 {
	var sumSq float64
	for _, x := range v {
		sumSq += x * x
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return v
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
