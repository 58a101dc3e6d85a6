package hashing

import (
	"context"
	"math"
	"testing"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestEmbedder_Deterministic(t *testing.T) {
	e := New(0)
	ctx := context.Background()

	a, err := e.Embed(ctx, "The capital of France is Paris.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := New(DefaultDimensions).Embed(ctx, "The capital of France is Paris.")

	if len(a.Embedding) != DefaultDimensions {
		t.Fatalf("expected %d dims, got %d", DefaultDimensions, len(a.Embedding))
	}
	for i := range a.Embedding {
		if a.Embedding[i] != b.Embedding[i] {
			t.Fatalf("vectors differ at %d", i)
		}
	}
}

func TestEmbedder_Normalized(t *testing.T) {
	res, _ := New(64).Embed(context.Background(), "Berlin Germany capital")
	var norm float64
	for _, v := range res.Embedding {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("expected unit norm, got %f", norm)
	}
}

func TestEmbedder_SimilarTextsScoreHigher(t *testing.T) {
	e := New(0)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "What is the capital of France?")
	paris, _ := e.Embed(ctx, "The capital of France is Paris.")
	other, _ := e.Embed(ctx, "Photosynthesis converts light into chemical energy.")

	if cosine(q.Embedding, paris.Embedding) <= cosine(q.Embedding, other.Embedding) {
		t.Errorf("expected related text to score higher")
	}
}

func TestEmbedder_EmptyTextZeroVector(t *testing.T) {
	res, err := New(8).Embed(context.Background(), "  ,. ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, v := range res.Embedding {
		if v != 0 {
			t.Fatalf("expected zero vector, got %v", res.Embedding)
		}
	}
	if res.TotalTokens != 0 {
		t.Errorf("expected 0 tokens, got %d", res.TotalTokens)
	}
}

func TestEmbedder_BatchMatchesSingle(t *testing.T) {
	e := New(32)
	ctx := context.Background()
	texts := []string{"alpha beta", "gamma delta"}

	batch, err := e.BatchEmbed(ctx, texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, text := range texts {
		single, _ := e.Embed(ctx, text)
		for j := range single.Embedding {
			if single.Embedding[j] != batch.Embeddings[i][j] {
				t.Fatalf("text %d differs at %d", i, j)
			}
		}
	}
	if batch.TotalTokens != 4 {
		t.Errorf("expected 4 tokens, got %d", batch.TotalTokens)
	}
}

func TestEmbedder_Model(t *testing.T) {
	if got := New(384).Model(); got != "hashing-v1-384" {
		t.Errorf("unexpected model %q", got)
	}
}
