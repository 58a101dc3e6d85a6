package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kailas-cloud/docchat/internal/db"
	"github.com/kailas-cloud/docchat/internal/domain/session"
)

var _ Store = (*Redis)(nil)

// Backend is the subset of db.Store the Redis transcript store needs.
type Backend interface {
	db.KVStore
	db.ListStore
}

// Redis stores each transcript as a list of JSON turns next to a marker key
// that records when the session was created.
type Redis struct {
	kv     Backend
	prefix string
	ttl    time.Duration
}

// NewRedis creates a Redis/Valkey backed store. A ttl > 0 expires idle
// sessions; each Append refreshes it.
func NewRedis(kv Backend, prefix string, ttl time.Duration) *Redis {
	return &Redis{kv: kv, prefix: prefix, ttl: ttl}
}

func (r *Redis) markerKey(id string) string { return r.prefix + "session:" + id }
func (r *Redis) listKey(id string) string   { return r.prefix + "history:" + id }

// Create implements Store.
func (r *Redis) Create(ctx context.Context, id string) error {
	ok, err := r.kv.Exists(ctx, r.markerKey(id))
	if err != nil {
		return fmt.Errorf("check session %s: %w", id, err)
	}
	if ok {
		return nil
	}
	created := []byte(time.Now().UTC().Format(time.RFC3339))
	if err := r.kv.SetWithTTL(ctx, r.markerKey(id), created, r.ttl); err != nil {
		return fmt.Errorf("create session %s: %w", id, err)
	}
	return nil
}

// Append implements Store. RPUSH of all turns is a single command, so
// concurrent appends never interleave within one call.
func (r *Redis) Append(ctx context.Context, id string, turns ...session.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	if err := validateTurns(turns); err != nil {
		return err
	}
	values := make([][]byte, len(turns))
	for i, t := range turns {
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encode turn: %w", err)
		}
		values[i] = raw
	}
	if err := r.kv.RPush(ctx, r.listKey(id), r.ttl, values...); err != nil {
		return fmt.Errorf("append to %s: %w", id, err)
	}
	if r.ttl > 0 {
		if err := r.kv.Expire(ctx, r.markerKey(id), r.ttl, false); err != nil {
			return fmt.Errorf("refresh session %s: %w", id, err)
		}
	}
	return nil
}

// History implements Store.
func (r *Redis) History(ctx context.Context, id string) ([]session.Turn, error) {
	items, err := r.kv.LRange(ctx, r.listKey(id), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", id, err)
	}
	out := make([]session.Turn, 0, len(items))
	for _, raw := range items {
		var t session.Turn
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("decode turn of %s: %w", id, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// Exists implements Store.
func (r *Redis) Exists(ctx context.Context, id string) (bool, error) {
	ok, err := r.kv.Exists(ctx, r.markerKey(id))
	if err != nil {
		return false, fmt.Errorf("check session %s: %w", id, err)
	}
	return ok, nil
}
