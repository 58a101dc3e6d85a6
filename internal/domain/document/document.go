// Package document holds the page-level text extracted from an uploaded file.
package document

// Document is the text of one page of a source file. It is not mutated after loading.
type Document struct {
	Content string
	// Page is 1-based.
	Page   int
	Source string
}

// IsBlank reports whether the page carries no extractable text.
func (d Document) IsBlank() bool {
	for _, r := range d.Content {
		switch r {
		case ' ', '\t', '\n', '\r', '\f', '\v':
		default:
			return false
		}
	}
	return true
}
