package chat

import (
	"context"

	"github.com/kailas-cloud/docchat/internal/domain/session"
	"github.com/kailas-cloud/docchat/internal/prompt"
	"github.com/kailas-cloud/docchat/internal/repository/vectorindex"
)

// IndexSource resolves a session's vector index, usually through the cache.
type IndexSource interface {
	Get(ctx context.Context, sessionID string) (*vectorindex.Index, error)
}

// Transcripts is the session store.
type Transcripts interface {
	Create(ctx context.Context, id string) error
	Append(ctx context.Context, id string, turns ...session.Turn) error
	History(ctx context.Context, id string) ([]session.Turn, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// Prompts resolves templates by name.
type Prompts interface {
	Get(name string) (prompt.Template, error)
}
