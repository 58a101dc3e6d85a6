// Package vectorindex builds, persists and searches per-session vector indexes.
//
// An index is immutable once built. Search is an exact cosine scan, which is
// adequate for the few hundred to few thousand chunks of a single document.
package vectorindex

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/domain/chunk"
)

// DefaultTopK is the number of chunks returned when k <= 0.
const DefaultTopK = 4

// Manifest describes a persisted index.
type Manifest struct {
	Version    int       `yaml:"version"`
	SessionID  string    `yaml:"session_id"`
	Model      string    `yaml:"model"`
	Dimensions int       `yaml:"dimensions"`
	Chunks     int       `yaml:"chunks"`
	CreatedAt  time.Time `yaml:"created_at"`
}

const manifestVersion = 1

// Hit is one search result.
type Hit struct {
	Chunk chunk.Chunk
	Score float64
}

// Index holds chunks and their vectors in insertion order.
type Index struct {
	manifest Manifest
	chunks   []chunk.Chunk
	vectors  [][]float32
	norms    []float64
}

// Build creates an index. chunks and vectors must be parallel slices and all
// vectors must share one dimension. An empty index is valid.
func Build(model string, chunks []chunk.Chunk, vectors [][]float32) (*Index, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("build index: %d chunks but %d vectors", len(chunks), len(vectors))
	}
	dims := 0
	if len(vectors) > 0 {
		dims = len(vectors[0])
	}
	norms := make([]float64, len(vectors))
	for i, v := range vectors {
		if len(v) != dims {
			return nil, fmt.Errorf("build index: vector %d has %d dims, want %d: %w",
				i, len(v), dims, domain.ErrVectorDimMismatch)
		}
		norms[i] = norm(v)
	}

	return &Index{
		manifest: Manifest{
			Version:    manifestVersion,
			Model:      model,
			Dimensions: dims,
			Chunks:     len(chunks),
			CreatedAt:  time.Now().UTC(),
		},
		chunks:  chunks,
		vectors: vectors,
		norms:   norms,
	}, nil
}

// Manifest returns the index metadata.
func (ix *Index) Manifest() Manifest { return ix.manifest }

// Len returns the number of chunks.
func (ix *Index) Len() int { return len(ix.chunks) }

// Search returns up to k chunks by descending cosine similarity. Equal
// scores keep insertion order, so results are deterministic.
func (ix *Index) Search(query []float32, k int) ([]Hit, error) {
	if len(ix.chunks) == 0 {
		return nil, nil
	}
	if len(query) != ix.manifest.Dimensions {
		return nil, fmt.Errorf("search: query has %d dims, index has %d: %w",
			len(query), ix.manifest.Dimensions, domain.ErrVectorDimMismatch)
	}
	if k <= 0 {
		k = DefaultTopK
	}

	qn := norm(query)
	hits := make([]Hit, len(ix.chunks))
	for i, v := range ix.vectors {
		hits[i] = Hit{Chunk: ix.chunks[i], Score: cosine(query, qn, v, ix.norms[i])}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

// cosine treats zero vectors as orthogonal to everything.
func cosine(a []float32, na float64, b []float32, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}
