// Package ingest turns an uploaded PDF into a persisted per-session vector index.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/domain/chunk"
	"github.com/kailas-cloud/docchat/internal/domain/session"
	"github.com/kailas-cloud/docchat/internal/logger"
	"github.com/kailas-cloud/docchat/internal/metrics"
	"github.com/kailas-cloud/docchat/internal/repository/vectorindex"
)

// Result describes a completed ingestion.
type Result struct {
	SessionID string
	FilePath  string
	Pages     int
	Chunks    int
}

// Deps wires the pipeline stages.
type Deps struct {
	Loader   Loader
	Splitter Splitter
	// Embedder must be the document-side embedder of Model.
	Embedder  domain.Embedder
	Model     string
	Indexes   IndexStore
	Cache     IndexCache // optional
	Sessions  SessionRegistry
	UploadDir string
	Location  *time.Location
	Logger    *zap.Logger
}

// Service runs ingestions.
type Service struct {
	d   Deps
	now func() time.Time
}

// New creates an ingestion service.
func New(d Deps) *Service {
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Service{d: d, now: time.Now}
}

// Ingest saves the upload under a new session, indexes it and registers the
// session. On any failure nothing loadable is left behind.
func (s *Service) Ingest(ctx context.Context, up Upload) (res Result, err error) {
	start := time.Now()
	log := logger.Or(ctx, s.d.Logger)
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.IngestionsTotal.WithLabelValues(status).Inc()
	}()

	name, err := fileName(up.Filename())
	if err != nil {
		return Result{}, err
	}
	data, err := up.Bytes()
	if err != nil {
		return Result{}, fmt.Errorf("read upload: %w", err)
	}

	id := session.NewID(s.now(), s.d.Location)
	dir := filepath.Join(s.d.UploadDir, id)
	path := filepath.Join(dir, name)

	if err := s.save(dir, path, data); err != nil {
		return Result{}, err
	}
	indexed := false
	defer func() {
		if err == nil {
			return
		}
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			log.Warn("failed to remove upload", zap.String("dir", dir), zap.Error(rmErr))
		}
		if indexed {
			if rmErr := s.d.Indexes.Remove(id); rmErr != nil {
				log.Warn("failed to remove index", zap.String("session_id", id), zap.Error(rmErr))
			}
		}
	}()

	docs, err := s.d.Loader.Load(ctx, path)
	if err != nil {
		return Result{}, fmt.Errorf("load %s: %w", name, err)
	}
	chunks := s.d.Splitter.Split(docs)

	emb, err := domain.EmbedAll(ctx, s.d.Embedder, chunk.Texts(chunks))
	if err != nil {
		return Result{}, fmt.Errorf("embed chunks: %w", err)
	}

	ix, err := vectorindex.Build(s.d.Model, chunks, emb.Embeddings)
	if err != nil {
		return Result{}, fmt.Errorf("build index: %w", err)
	}
	if err := s.d.Indexes.Persist(ctx, id, ix); err != nil {
		return Result{}, fmt.Errorf("persist index: %w", err)
	}
	indexed = true

	if err := s.d.Sessions.Create(ctx, id); err != nil {
		return Result{}, fmt.Errorf("register session: %w", err)
	}
	if s.d.Cache != nil {
		s.d.Cache.Put(id, ix)
	}

	metrics.IngestedChunks.Observe(float64(len(chunks)))
	log.Info("document ingested",
		zap.String("session_id", id),
		zap.String("file", name),
		zap.Int("pages", len(docs)),
		zap.Int("chunks", len(chunks)),
		zap.Int("embedding_tokens", emb.TotalTokens),
		zap.Duration("duration", time.Since(start)),
	)

	return Result{SessionID: id, FilePath: path, Pages: len(docs), Chunks: len(chunks)}, nil
}

func (s *Service) save(dir, path string, data []byte) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("save upload: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("stat upload: %w", err)
	}
	if info.Size() == 0 {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("%w: %s", domain.ErrEmptyFile, filepath.Base(path))
	}
	return nil
}

// fileName reduces a client-supplied name to its base and checks the extension.
func fileName(raw string) (string, error) {
	name := filepath.Base(strings.ReplaceAll(strings.TrimSpace(raw), `\`, "/"))
	if name == "" || name == "." || name == "/" || name == ".." {
		return "", fmt.Errorf("%w: file name is required", domain.ErrInvalidRequest)
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return "", fmt.Errorf("%w: %q is not a .pdf file", domain.ErrUnsupportedFormat, name)
	}
	return name, nil
}
