// Package hashing implements a deterministic, dependency-free local embedder.
//
// Texts are tokenized into lowercase words; every word and every adjacent
// word pair is hashed with xxhash into one of Dimensions buckets with a
// hash-derived sign. The result is L2-normalized, so cosine similarity
// reflects shared vocabulary. It needs no network and is meant for offline
// use and tests.
package hashing

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/kailas-cloud/docchat/internal/domain"
)

// DefaultDimensions matches all-MiniLM-L6-v2.
const DefaultDimensions = 384

// ModelName is stored in index manifests built with this embedder.
const ModelName = "hashing-v1"

// Embedder is safe for concurrent use.
type Embedder struct {
	dims int
}

// New creates a hashing embedder; dims <= 0 selects DefaultDimensions.
func New(dims int) *Embedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Embedder{dims: dims}
}

// Model returns the model identifier.
func (e *Embedder) Model() string { return fmt.Sprintf("%s-%d", ModelName, e.dims) }

// Dimensions returns the vector size.
func (e *Embedder) Dimensions() int { return e.dims }

// Embed vectorizes one text. Token counts report the number of words.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("hashing embed: %w", err)
	}
	vec, n := e.vectorize(text)
	return domain.EmbeddingResult{Embedding: vec, PromptTokens: n, TotalTokens: n}, nil
}

// BatchEmbed vectorizes texts in order.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("hashing batch embed: %w", err)
		}
		vec, n := e.vectorize(t)
		out.Embeddings[i] = vec
		out.PromptTokens += n
		out.TotalTokens += n
	}
	return out, nil
}

// HealthCheck always succeeds.
func (e *Embedder) HealthCheck(context.Context) error { return nil }

func (e *Embedder) vectorize(text string) ([]float32, int) {
	acc := make([]float64, e.dims)
	words := tokenize(text)
	for i, w := range words {
		e.add(acc, w, 1)
		if i > 0 {
			e.add(acc, words[i-1]+" "+w, 0.5)
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	vec := make([]float32, e.dims)
	if norm == 0 {
		return vec, len(words)
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec, len(words)
}

func (e *Embedder) add(acc []float64, feature string, weight float64) {
	h := xxhash.Sum64String(feature)
	idx := int(h % uint64(e.dims)) //nolint:gosec // dims is positive
	if h>>63 == 1 {
		weight = -weight
	}
	acc[idx] += weight
}

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"of": true, "in": true, "on": true, "and": true, "or": true, "to": true,
	"what": true, "which": true, "who": true, "how": true, "does": true, "do": true,
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if !stopwords[f] {
			out = append(out, f)
		}
	}
	return out
}
