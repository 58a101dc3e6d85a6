package ingest

import (
	"context"

	"github.com/kailas-cloud/docchat/internal/domain/chunk"
	"github.com/kailas-cloud/docchat/internal/domain/document"
	"github.com/kailas-cloud/docchat/internal/repository/vectorindex"
)

// Upload is an uploaded file. oapi-codegen's types.File satisfies it.
type Upload interface {
	Filename() string
	Bytes() ([]byte, error)
}

// Loader turns a saved file into one document per page.
type Loader interface {
	Load(ctx context.Context, path string) ([]document.Document, error)
}

// Splitter cuts documents into overlapping chunks.
type Splitter interface {
	Split(docs []document.Document) []chunk.Chunk
}

// IndexStore persists vector indexes by session id.
type IndexStore interface {
	Persist(ctx context.Context, sessionID string, ix *vectorindex.Index) error
	Remove(sessionID string) error
}

// IndexCache keeps freshly built indexes warm for the first queries.
type IndexCache interface {
	Put(sessionID string, ix *vectorindex.Index)
}

// SessionRegistry registers a session with an empty transcript.
type SessionRegistry interface {
	Create(ctx context.Context, id string) error
}
