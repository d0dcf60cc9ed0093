// Package poolstore is a tagstore.Store backed by any pool.Pool, so a
// backend that already satisfies the pool contract can double as the
// tag-version store without a separate client dependency. Create-if-
// absent is only as atomic as the pool's SetIfAbsent: it is atomic on
// the Redis and in-memory pools, while the Ristretto and BigCache pools
// emulate it with a non-atomic Get-then-Set. This is the
// generic counterpart of tagstore/redis's direct-client
// implementation: pick tagstore/redis for a dedicated Redis tag store,
// poolstore to reuse whatever pool.Pool the item store already runs.
package poolstore

import (
	"context"
	"sort"
	"time"

	"github.com/unkn0wn-root/tagcache/internal/tagtoken"
	"github.com/unkn0wn-root/tagcache/internal/xrand"
	"github.com/unkn0wn-root/tagcache/pool"
	"github.com/unkn0wn-root/tagcache/tagstore"
)

const refreshProbability = 60.0 / 86400.0

// Store adapts a pool.Pool into a tagstore.Store. Create-if-absent
// uses Pool.SetIfAbsent; when p also implements pool.Pipeliner, misses
// are created in one batched round trip instead of one SetIfAbsent
// call per tag.
type Store struct {
	p            pool.Pool
	tagsLifetime time.Duration
}

var _ tagstore.Store = (*Store)(nil)

// New adapts p into a tag store. tagsLifetime<=0 means tag tokens
// never expire.
func New(p pool.Pool, tagsLifetime time.Duration) *Store {
	return &Store{p: p, tagsLifetime: tagsLifetime}
}

// GetOrCreate: sort, read each tag through Pool.Get, create-if-absent
// for misses, TTL-refresh hits by chance.
func (s *Store) GetOrCreate(ctx context.Context, tagIDs []string) (map[string][]byte, error) {
	if len(tagIDs) == 0 {
		return map[string][]byte{}, nil
	}
	sorted := make([]string, len(tagIDs))
	copy(sorted, tagIDs)
	sort.Strings(sorted)

	out := make(map[string][]byte, len(sorted))
	var missing, hits []string
	for _, id := range sorted {
		v, ok, err := s.p.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, id)
			continue
		}
		out[id] = v
		hits = append(hits, id)
	}

	if len(missing) > 0 {
		created, err := s.createMissing(ctx, missing)
		if err != nil {
			return nil, err
		}
		for id, v := range created {
			out[id] = v
		}
	} else if s.tagsLifetime > 0 {
		s.refreshHits(ctx, hits)
	}

	return out, nil
}

func (s *Store) createMissing(ctx context.Context, ids []string) (map[string][]byte, error) {
	tokens := make(map[string][]byte, len(ids))
	for _, id := range ids {
		tokens[id] = tagtoken.New()
	}

	out := make(map[string][]byte, len(ids))
	var lostRace []string

	if pl, ok := s.p.(pool.Pipeliner); ok {
		cmds := make([]pool.Cmd, len(ids))
		for i, id := range ids {
			cmds[i] = pool.Cmd{Kind: pool.CmdSetIfAbsent, Key: id, Value: tokens[id], TTL: s.tagsLifetime}
		}
		results, err := pl.Pipeline(ctx, cmds)
		if err != nil {
			return nil, err
		}
		for i, id := range ids {
			if results[i].Err != nil {
				return nil, results[i].Err
			}
			if results[i].OK {
				out[id] = tokens[id]
			} else {
				lostRace = append(lostRace, id)
			}
		}
	} else {
		for _, id := range ids {
			won, err := s.p.SetIfAbsent(ctx, id, tokens[id], s.tagsLifetime)
			if err != nil {
				return nil, err
			}
			if won {
				out[id] = tokens[id]
			} else {
				lostRace = append(lostRace, id)
			}
		}
	}

	// A lost race means another writer's create-if-absent won first;
	// re-read to adopt whichever token won. Not re-reading is also
	// legitimate — the store may return fewer tags than requested.
	for _, id := range lostRace {
		if v, ok, err := s.p.Get(ctx, id); err == nil && ok {
			out[id] = v
		}
	}
	return out, nil
}

// refreshHits applies the TTL-refresh heuristic: only reached when
// every requested tag was already a hit and tagsLifetime>0, each hit
// tag independently rolls a 60/86400 chance of an Expire refresh.
func (s *Store) refreshHits(ctx context.Context, ids []string) {
	for _, id := range ids {
		if xrand.Float64() >= refreshProbability {
			continue
		}
		_, _ = s.p.Expire(ctx, id, s.tagsLifetime)
	}
}

func (s *Store) Delete(ctx context.Context, tagIDs []string) error {
	if len(tagIDs) == 0 {
		return nil
	}
	_, err := s.p.Delete(ctx, tagIDs)
	return err
}

func (s *Store) Close(context.Context) error { return nil }
