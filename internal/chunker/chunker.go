// Package chunker splits page text into fixed-size overlapping chunks.
//
// Sizes are measured in runes so multi-byte text is never cut inside a code
// point. Every chunk holds at most Size runes and consecutive chunks of the
// same page share exactly Overlap runes. Chunks never span two pages.
package chunker

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/docchat/internal/domain/chunk"
	"github.com/kailas-cloud/docchat/internal/domain/document"
)

// Defaults used by the ingestion pipeline.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// ErrInvalidConfig is returned for a size/overlap pair that cannot make progress.
var ErrInvalidConfig = errors.New("invalid chunker config")

// Chunker is stateless and safe for concurrent use.
type Chunker struct {
	size    int
	overlap int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the maximum chunk length in runes.
func WithChunkSize(size int) Option {
	return func(c *Chunker) { c.size = size }
}

// WithOverlap sets the number of runes shared by consecutive chunks.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) { c.overlap = overlap }
}

// New builds a chunker. Overlap must be non-negative and smaller than size.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{size: DefaultChunkSize, overlap: DefaultChunkOverlap}
	for _, opt := range opts {
		opt(c)
	}
	if c.size <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d must be positive", ErrInvalidConfig, c.size)
	}
	if c.overlap < 0 || c.overlap >= c.size {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidConfig, c.overlap, c.size)
	}
	return c, nil
}

// Size returns the configured chunk size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split chunks every document in order. Blank pages produce no chunks.
// Positions are assigned sequentially across the whole input.
func (c *Chunker) Split(docs []document.Document) []chunk.Chunk {
	var out []chunk.Chunk
	for _, doc := range docs {
		if doc.IsBlank() {
			continue
		}
		for _, text := range c.SplitText(doc.Content) {
			out = append(out, chunk.Chunk{
				Text:     text,
				Page:     doc.Page,
				Source:   doc.Source,
				Position: len(out),
			})
		}
	}
	return out
}

// SplitText cuts a single text into windows of Size runes advancing by
// Size-Overlap. The last window ends at the end of the text.
func (c *Chunker) SplitText(text string) []string {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	stride := c.size - c.overlap
	out := make([]string, 0, n/stride+1)
	for start := 0; ; start += stride {
		end := min(start+c.size, n)
		out = append(out, string(runes[start:end]))
		if end == n {
			break
		}
	}
	return out
}
