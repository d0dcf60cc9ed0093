// Package redis is a Redis-backed tagstore.Store: shares tag versions
// across processes and survives restarts. One opaque version token per
// tag, created via SET NX EX.
package redis

import (
	"context"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/tagcache/internal/tagtoken"
	"github.com/unkn0wn-root/tagcache/internal/xrand"
	"github.com/unkn0wn-root/tagcache/tagstore"
)

const refreshProbability = 60.0 / 86400.0

type Store struct {
	rdb          goredis.UniversalClient
	ns           string
	tagsLifetime time.Duration
}

var _ tagstore.Store = (*Store)(nil)

// New creates a Redis-backed tag store under the given namespace.
// tagsLifetime<=0 means tag tokens never expire.
func New(client goredis.UniversalClient, namespace string, tagsLifetime time.Duration) *Store {
	return &Store{rdb: client, ns: namespace, tagsLifetime: tagsLifetime}
}

// GetOrCreate: sort, MGET, pipeline SET NX EX for the misses, adopt
// whichever token won each race.
func (s *Store) GetOrCreate(ctx context.Context, tagIDs []string) (map[string][]byte, error) {
	if len(tagIDs) == 0 {
		return map[string][]byte{}, nil
	}
	sorted := make([]string, len(tagIDs))
	copy(sorted, tagIDs)
	sort.Strings(sorted)

	vals, err := s.rdb.MGet(ctx, sorted...).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string][]byte, len(sorted))
	var missing []string
	for i, v := range vals {
		switch vv := v.(type) {
		case string:
			out[sorted[i]] = []byte(vv)
		case []byte:
			out[sorted[i]] = vv
		default:
			missing = append(missing, sorted[i])
		}
	}

	if len(missing) > 0 {
		created, err := s.createMissing(ctx, missing)
		if err != nil {
			return nil, err
		}
		for k, v := range created {
			out[k] = v
		}
	} else if s.tagsLifetime > 0 {
		s.refreshHits(ctx, sorted)
	}

	return out, nil
}

func (s *Store) createMissing(ctx context.Context, ids []string) (map[string][]byte, error) {
	tokens := make(map[string][]byte, len(ids))
	pipe := s.rdb.Pipeline()
	cmds := make(map[string]*goredis.BoolCmd, len(ids))
	for _, id := range ids {
		tok := tagtoken.New()
		tokens[id] = tok
		if s.tagsLifetime > 0 {
			cmds[id] = pipe.SetNX(ctx, id, tok, s.tagsLifetime)
		} else {
			cmds[id] = pipe.SetNX(ctx, id, tok, 0)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil && err != goredis.Nil {
		return nil, err
	}

	out := make(map[string][]byte, len(ids))
	var lostRace []string
	for _, id := range ids {
		won, err := cmds[id].Result()
		if err != nil {
			return nil, err
		}
		if won {
			out[id] = tokens[id]
		} else {
			lostRace = append(lostRace, id)
		}
	}
	// A lost race means another writer's create-if-absent won first.
	// Re-reading is not required — the store may legitimately return
	// fewer tags than requested. We still make one best-effort read
	// since it's cheap and usually resolves it.
	if len(lostRace) > 0 {
		vals, err := s.rdb.MGet(ctx, lostRace...).Result()
		if err == nil {
			for i, v := range vals {
				switch vv := v.(type) {
				case string:
					out[lostRace[i]] = []byte(vv)
				case []byte:
					out[lostRace[i]] = vv
				}
			}
		}
	}
	return out, nil
}

// refreshHits applies the TTL-refresh heuristic: only when every
// requested tag was already a hit and TagsLifetime>0, each hit tag
// independently rolls a 60/86400 chance of an EXPIRE refresh.
func (s *Store) refreshHits(ctx context.Context, ids []string) {
	var toRefresh []string
	for _, id := range ids {
		if xrand.Float64() < refreshProbability {
			toRefresh = append(toRefresh, id)
		}
	}
	if len(toRefresh) == 0 {
		return
	}
	pipe := s.rdb.Pipeline()
	for _, id := range toRefresh {
		pipe.Expire(ctx, id, s.tagsLifetime)
	}
	_, _ = pipe.Exec(ctx)
}

func (s *Store) Delete(ctx context.Context, tagIDs []string) error {
	if len(tagIDs) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, tagIDs...).Err()
}

func (s *Store) Close(context.Context) error { return nil }
