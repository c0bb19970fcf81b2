package embed_test

import (
	"context"
	"math"
	"testing"

	"github.com/westonopentrain/capsule-match/internal/embed"
)

func TestMock_SameTextYieldsSameVector(t *testing.T) {
	m := embed.NewMock(16)
	ctx := context.Background()

	a, err := embed.EmbedOne(ctx, m, "legal contract review")
	if err != nil {
		t.Fatalf("EmbedOne() error = %v", err)
	}
	b, err := embed.EmbedOne(ctx, m, "legal contract review")
	if err != nil {
		t.Fatalf("EmbedOne() error = %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Mock.Embed() is not deterministic: %v != %v", a, b)
		}
	}
}

func TestMock_DifferentTextYieldsDifferentVector(t *testing.T) {
	m := embed.NewMock(16)
	ctx := context.Background()

	a, _ := embed.EmbedOne(ctx, m, "legal contract review")
	b, _ := embed.EmbedOne(ctx, m, "culinary recipe development")

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("Mock.Embed() produced identical vectors for unrelated texts")
	}
}

func TestMock_VectorsAreUnitNormalized(t *testing.T) {
	m := embed.NewMock(32)
	vecs, err := m.Embed(context.Background(), []string{"a sample capsule text"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	var sumSq float64
	for _, x := range vecs[0] {
		sumSq += x * x
	}
	norm := math.Sqrt(sumSq)
	if math.Abs(norm-1.0) > 1e-9 {
		t.Errorf("Embed() vector norm = %v, want ~1.0", norm)
	}
}

func TestMock_Dimensions(t *testing.T) {
	m := embed.NewMock(64)
	if m.Dimensions() != 64 {
		t.Errorf("Dimensions() = %d, want 64", m.Dimensions())
	}
	vecs, err := m.Embed(context.Background(), []string{"x"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vecs[0]) != 64 {
		t.Errorf("Embed() vector length = %d, want 64", len(vecs[0]))
	}
}

func TestMock_EmbedPreservesInputOrder(t *testing.T) {
	m := embed.NewMock(8)
	vecs, err := m.Embed(context.Background(), []string{"one", "two", "three"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("Embed() returned %d vectors, want 3", len(vecs))
	}

	single, _ := embed.EmbedOne(context.Background(), m, "two")
	for i := range single {
		if single[i] != vecs[1][i] {
			t.Fatalf("Embed() vector for 'two' at index 1 doesn't match EmbedOne('two')")
		}
	}
}

func TestEmbedOne_EmptyStringYieldsVector(t *testing.T) {
	m := embed.NewMock(8)
	vecs, err := embed.EmbedOne(context.Background(), m, "")
	if err != nil {
		t.Fatalf("EmbedOne() error = %v", err)
	}
	if vecs == nil {
		t.Error("EmbedOne() on empty string input returned nil, want a deterministic vector for the empty string")
	}
}
