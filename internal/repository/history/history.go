// Package history stores conversation transcripts keyed by session id.
//
// Three backends share one contract: an in-process map, a Redis/Valkey list
// per session and a SQLite database. Reading an unknown session yields an
// empty transcript, not an error.
package history

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/docchat/internal/domain/session"
)

// Store is the transcript store contract.
type Store interface {
	// Create registers a session with an empty transcript. Creating an
	// existing session keeps its turns.
	Create(ctx context.Context, id string) error
	// Append adds turns in order, atomically with respect to other Appends.
	Append(ctx context.Context, id string, turns ...session.Turn) error
	History(ctx context.Context, id string) ([]session.Turn, error)
	Exists(ctx context.Context, id string) (bool, error)
}

func validateTurns(turns []session.Turn) error {
	for i, t := range turns {
		if !t.Role.Valid() {
			return fmt.Errorf("turn %d: unknown role %q", i, t.Role)
		}
	}
	return nil
}
