// Package embed provides the embedding function used by the capsule
// builder and the subject-matter semantic gate: text in, dense cosine-
// normalized vector out.
package embed

import "context"

// Embedder turns text into a dense, cosine-normalized vector of fixed
// dimension. Implementations must be safe for concurrent use.
type Embedder interface {
	// Embed returns one vector per input text, in the same order.
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	Dimensions() int
}

// EmbedOne is a convenience wrapper for the common single-text case.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float64, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, nil
	}
	return vecs[0], nil
}
