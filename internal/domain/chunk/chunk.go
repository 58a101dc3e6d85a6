// Package chunk defines the retrieval unit stored in a vector index.
package chunk

// Chunk is a contiguous slice of one page. Page and Source are inherited from
// the document it was cut from; Position is its order within the ingestion.
type Chunk struct {
	Text     string
	Page     int
	Source   string
	Position int
}

// Texts returns the chunk texts in order.
func Texts(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
