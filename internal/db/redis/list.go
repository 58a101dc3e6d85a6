package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/docchat/internal/db"
)

// RPush appends values to the list at key. With ttl > 0 the expiry is
// refreshed in the same pipeline.
func (s *Store) RPush(ctx context.Context, key string, ttl time.Duration, values ...[]byte) error {
	if len(values) == 0 {
		return nil
	}
	elems := make([]string, len(values))
	for i, v := range values {
		elems[i] = rueidis.BinaryString(v)
	}

	cmds := rueidis.Commands{s.b().Rpush().Key(key).Element(elems...).Build()}
	if ttl > 0 {
		cmds = append(cmds, s.expireCmd(key, ttl, false))
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			op := db.OpRPush
			if i > 0 {
				op = db.OpExpire
			}
			return &db.Error{Op: op, Err: err}
		}
	}
	return nil
}

// LRange returns list elements between start and stop inclusive. A missing
// key yields an empty slice.
func (s *Store) LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	items, err := s.do(ctx, s.b().Lrange().Key(key).Start(start).Stop(stop).Build()).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpLRange, Err: err}
	}
	out := make([][]byte, len(items))
	for i, item := range items {
		out[i] = []byte(item)
	}
	return out, nil
}
