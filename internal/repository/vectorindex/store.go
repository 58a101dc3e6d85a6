package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/domain/chunk"
)

const (
	chunksFile   = "chunks.parquet"
	manifestFile = "manifest.yaml"
)

// row is the on-disk layout of one chunk.
type row struct {
	Position int64     `parquet:"position"`
	Page     int32     `parquet:"page"`
	Source   string    `parquet:"source"`
	Text     string    `parquet:"text"`
	Vector   []float32 `parquet:"vector"`
}

// Store persists indexes under <root>/<session_id>.
type Store struct {
	root   string
	logger *zap.Logger
}

// NewStore creates a store rooted at dir.
func NewStore(root string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{root: root, logger: logger}
}

// Path returns the directory of a session's index.
func (s *Store) Path(sessionID string) string {
	return filepath.Join(s.root, sessionID)
}

// Persist writes the index atomically: files go to a temporary directory
// which is renamed into place, and the manifest is written last. A crash
// leaves either no index or a complete one.
func (s *Store) Persist(ctx context.Context, sessionID string, ix *Index) error {
	if err := checkID(sessionID); err != nil {
		return err
	}
	if err := os.MkdirAll(s.root, 0o750); err != nil {
		return fmt.Errorf("create vectorstore root: %w", err)
	}

	tmp, err := os.MkdirTemp(s.root, ".tmp-"+sessionID+"-")
	if err != nil {
		return fmt.Errorf("create temp index dir: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmp)
		}
	}()

	rows := make([]row, len(ix.chunks))
	for i, c := range ix.chunks {
		rows[i] = row{
			Position: int64(c.Position),
			Page:     int32(c.Page), //nolint:gosec // page numbers fit in int32
			Source:   c.Source,
			Text:     c.Text,
			Vector:   ix.vectors[i],
		}
	}
	if err := parquet.WriteFile(filepath.Join(tmp, chunksFile), rows); err != nil {
		return fmt.Errorf("write chunks: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}

	m := ix.manifest
	m.SessionID = sessionID
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(tmp, manifestFile), data, 0o600); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	final := s.Path(sessionID)
	if _, err := os.Stat(final); err == nil {
		return fmt.Errorf("persist index: %s already exists", final)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}
	committed = true
	ix.manifest.SessionID = sessionID

	s.logger.Debug("vector index persisted",
		zap.String("session_id", sessionID),
		zap.String("path", final),
		zap.Int("chunks", len(rows)),
	)
	return nil
}

// Load reads a persisted index. A missing directory or manifest is reported
// as domain.ErrIndexNotFound.
func (s *Store) Load(ctx context.Context, sessionID string) (*Index, error) {
	if err := checkID(sessionID); err != nil {
		return nil, err
	}
	dir := s.Path(sessionID)

	data, err := os.ReadFile(filepath.Join(dir, manifestFile)) //nolint:gosec // id validated by checkID
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrIndexNotFound)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", dir, err)
	}
	if m.Version != manifestVersion {
		return nil, fmt.Errorf("index %s: unsupported manifest version %d", dir, m.Version)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}

	rows, err := parquet.ReadFile[row](filepath.Join(dir, chunksFile))
	if err != nil {
		return nil, fmt.Errorf("read chunks %s: %w", dir, err)
	}
	if len(rows) != m.Chunks {
		return nil, fmt.Errorf("index %s: manifest lists %d chunks, file has %d", dir, m.Chunks, len(rows))
	}

	chunks := make([]chunk.Chunk, len(rows))
	vectors := make([][]float32, len(rows))
	for i, r := range rows {
		chunks[i] = chunk.Chunk{Text: r.Text, Page: int(r.Page), Source: r.Source, Position: int(r.Position)}
		vectors[i] = r.Vector
	}

	ix, err := Build(m.Model, chunks, vectors)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", dir, err)
	}
	if len(rows) > 0 && ix.manifest.Dimensions != m.Dimensions {
		return nil, fmt.Errorf("index %s: manifest dims %d, vectors %d: %w",
			dir, m.Dimensions, ix.manifest.Dimensions, domain.ErrVectorDimMismatch)
	}
	ix.manifest = m
	return ix, nil
}

// Remove deletes a persisted index. Missing indexes are ignored.
func (s *Store) Remove(sessionID string) error {
	if err := checkID(sessionID); err != nil {
		return err
	}
	if err := os.RemoveAll(s.Path(sessionID)); err != nil {
		return fmt.Errorf("remove index: %w", err)
	}
	return nil
}

func checkID(sessionID string) error {
	if sessionID == "" || strings.ContainsAny(sessionID, `/\`) || strings.HasPrefix(sessionID, ".") {
		return fmt.Errorf("%w: invalid session id %q", domain.ErrInvalidRequest, sessionID)
	}
	return nil
}
