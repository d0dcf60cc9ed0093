// Package ristrettopool adapts dgraph-io/ristretto as an item Pool.
// It is cost-aware and subject to admission/eviction under memory
// pressure — exactly the "ephemeral cache subject to LRU eviction"
// case the tag-aware design is built to tolerate. Not suitable as a
// tag-version store: it has no atomic create-if-absent primitive.
package ristrettopool

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/tagcache/pool"
)

type Pool struct {
	c *rc.Cache
}

var _ pool.Pool = (*Pool)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
}

func New(cfg Config) (*Pool, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristrettopool: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Pool{c: c}, nil
}

func (p *Pool) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

func (p *Pool) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok, _ := p.Get(ctx, k); ok {
			out[k] = v
		}
	}
	return out, nil
}

// SetIfAbsent is a best-effort, non-atomic emulation (Get-then-Set).
// Ristretto has no native CAS primitive; callers needing a real
// tag-version store should use tagstore.Local or tagstore/redis
// instead of this pool.
func (p *Pool) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if _, ok, _ := p.Get(ctx, key); ok {
		return false, nil
	}
	ok, err := p.Set(ctx, key, value, 1, ttl)
	return ok, err
}

func (p *Pool) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	if cost <= 0 {
		cost = 1
	}
	return p.c.SetWithTTL(key, value, cost, ttl), nil
}

func (p *Pool) Delete(_ context.Context, keys []string) (bool, error) {
	for _, k := range keys {
		p.c.Del(k)
	}
	return true, nil
}

// Expire is not supported by ristretto's API (no TTL-refresh-in-place
// without rewriting the value); reports ok=false, no error.
func (p *Pool) Expire(context.Context, string, time.Duration) (bool, error) {
	return false, nil
}

// Clear has no prefix-scan support in ristretto; a non-empty prefix is
// rejected (ok=false) rather than silently clearing everything.
func (p *Pool) Clear(_ context.Context, prefix string) (bool, error) {
	if prefix != "" {
		return false, nil
	}
	p.c.Clear()
	return true, nil
}

func (p *Pool) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Metrics exposes ristretto's internal counters for callers who want
// them; not part of pool.Pool.
func (p *Pool) Metrics() *rc.Metrics { return p.c.Metrics }
