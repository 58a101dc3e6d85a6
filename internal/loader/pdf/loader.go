// Package pdf extracts per-page plain text from PDF files.
package pdf

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/domain/document"
)

// Loader reads a PDF from disk and returns one Document per page.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a loader.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// Load parses the file at path. Any parse failure, including a panic inside
// the parser on malformed input, is reported as domain.ErrLoadFailure.
// A document with zero pages yields an empty slice and no error.
func (l *Loader) Load(ctx context.Context, path string) (docs []document.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = fmt.Errorf("%w: %s: parser panic: %v", domain.ErrLoadFailure, path, r)
		}
	}()

	f, err := os.Open(path) //nolint:gosec // path is built by the ingestion pipeline
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", domain.ErrLoadFailure, path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", domain.ErrLoadFailure, path, err)
	}

	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrLoadFailure, path, err)
	}

	total := r.NumPage()
	docs = make([]document.Document, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %s page %d: %w", domain.ErrLoadFailure, path, i, err)
		}
		docs = append(docs, document.Document{
			Content: strings.TrimSpace(text),
			Page:    i,
			Source:  path,
		})
	}

	l.logger.Debug("pdf loaded",
		zap.String("path", path),
		zap.Int("pages", total),
		zap.Int("documents", len(docs)),
	)
	return docs, nil
}
