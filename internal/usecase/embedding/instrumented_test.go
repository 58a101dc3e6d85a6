package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/docchat/internal/domain"
)

type mockEmbedder struct {
	result     domain.EmbeddingResult
	err        error
	batchErr   error
	batchSizes []int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return m.result, m.err
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchSizes = append(m.batchSizes, len(texts))
	if m.batchErr != nil {
		return domain.BatchEmbeddingResult{}, m.batchErr
	}
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = []float32{float32(i)}
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: m.result.PromptTokens * len(texts),
		TotalTokens:  m.result.TotalTokens * len(texts),
	}, nil
}

// singleOnly hides BatchEmbed to exercise the sequential fallback.
type singleOnly struct{ inner *mockEmbedder }

func (s singleOnly) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return s.inner.Embed(ctx, text)
}

func TestInstrumentedEmbedder_RecordsUsage(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:   []float32{0.1, 0.2},
		TotalTokens: 100,
	}}
	p := NewInstrumentedEmbedder(inner, "test", "all-MiniLM-L6-v2", 0, nil)

	ctx, usage := domain.NewContextWithUsage(context.Background())
	res, err := p.Embed(ctx, "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embedding) != 2 {
		t.Fatalf("expected 2 dimensions, got %d", len(res.Embedding))
	}
	if usage.TotalTokens() != 100 || !usage.Used() {
		t.Errorf("expected 100 tokens recorded, got %d", usage.TotalTokens())
	}
	if p.Model() != "all-MiniLM-L6-v2" {
		t.Errorf("unexpected model %q", p.Model())
	}
}

func TestInstrumentedEmbedder_NoUsageCollector(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}, TotalTokens: 5}}
	p := NewInstrumentedEmbedder(inner, "test", "m", 0, nil)

	if _, err := p.Embed(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInstrumentedEmbedder_Error(t *testing.T) {
	innerErr := errors.New("provider down")
	p := NewInstrumentedEmbedder(&mockEmbedder{err: innerErr}, "test", "m", 0, nil)

	_, err := p.Embed(context.Background(), "hello")
	if !errors.Is(err, innerErr) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestInstrumentedEmbedder_BatchEmbed_SplitsIntoSubBatches(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{TotalTokens: 2}}
	p := NewInstrumentedEmbedder(inner, "test", "m", 3, nil)

	ctx, usage := domain.NewContextWithUsage(context.Background())
	res, err := p.BatchEmbed(ctx, []string{"a", "b", "c", "d", "e", "f", "g"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 7 {
		t.Fatalf("expected 7 embeddings, got %d", len(res.Embeddings))
	}
	if got := inner.batchSizes; len(got) != 3 || got[0] != 3 || got[1] != 3 || got[2] != 1 {
		t.Errorf("unexpected sub-batch sizes %v", got)
	}
	// Sub-batch results are concatenated in order.
	if res.Embeddings[3][0] != 0 || res.Embeddings[4][0] != 1 {
		t.Errorf("unexpected ordering %v", res.Embeddings)
	}
	if res.TotalTokens != 14 || usage.TotalTokens() != 14 {
		t.Errorf("expected 14 tokens, got result=%d usage=%d", res.TotalTokens, usage.TotalTokens())
	}
}

func TestInstrumentedEmbedder_BatchEmbed_Empty(t *testing.T) {
	inner := &mockEmbedder{}
	p := NewInstrumentedEmbedder(inner, "test", "m", 0, nil)

	res, err := p.BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Embeddings != nil || len(inner.batchSizes) != 0 {
		t.Errorf("expected no inner call, got %v", inner.batchSizes)
	}
}

func TestInstrumentedEmbedder_BatchEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{batchErr: errors.New("api down")}
	p := NewInstrumentedEmbedder(inner, "test", "m", 0, nil)

	if _, err := p.BatchEmbed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestInstrumentedEmbedder_BatchEmbed_FallbackToSingle(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.5}, TotalTokens: 3}}
	p := NewInstrumentedEmbedder(singleOnly{inner}, "test", "m", 0, nil)

	res, err := p.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 || res.TotalTokens != 6 {
		t.Errorf("unexpected result %+v", res)
	}
}
