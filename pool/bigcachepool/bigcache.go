// Package bigcachepool adapts allegro/bigcache as an item Pool. BigCache
// has no per-entry TTL (only a global LifeWindow), which exercises the
// pool contract's "TTL is best-effort, backend may ignore it" edge —
// an item's own expiry is enforced only by the adapter, which checks
// the expiry packed into the payload (and the tag versions) on read.
package bigcachepool

import (
	"context"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/tagcache/pool"
)

type Pool struct {
	c *bc.BigCache
}

var _ pool.Pool = (*Pool)(nil)

type Config struct {
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int
}

func New(cfg Config) (*Pool, error) {
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.NewBigCache(conf)
	if err != nil {
		return nil, err
	}
	return &Pool{c: c}, nil
}

func (p *Pool) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := p.c.Get(key)
	if err == bc.ErrEntryNotFound {
		return nil, false, nil
	}
	return b, err == nil, err
}

func (p *Pool) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok, err := p.Get(ctx, k); err != nil {
			return nil, err
		} else if ok {
			out[k] = v
		}
	}
	return out, nil
}

// SetIfAbsent is a best-effort, non-atomic emulation; see
// ristrettopool's note on the same limitation.
func (p *Pool) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if _, ok, _ := p.Get(ctx, key); ok {
		return false, nil
	}
	return p.Set(ctx, key, value, 0, ttl)
}

func (p *Pool) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	// BigCache has no per-entry TTL; relies on the global LifeWindow.
	return true, p.c.Set(key, value)
}

func (p *Pool) Delete(_ context.Context, keys []string) (bool, error) {
	for _, k := range keys {
		if err := p.c.Delete(k); err != nil && err != bc.ErrEntryNotFound {
			return false, err
		}
	}
	return true, nil
}

// Expire is unsupported (no per-entry TTL); reports ok=false.
func (p *Pool) Expire(context.Context, string, time.Duration) (bool, error) {
	return false, nil
}

func (p *Pool) Clear(_ context.Context, prefix string) (bool, error) {
	if prefix != "" {
		return false, nil
	}
	return true, p.c.Reset()
}

func (p *Pool) Close(_ context.Context) error {
	return p.c.Close()
}
