// Package memory is an in-process Pool: a mutex-guarded map with
// lazy TTL expiry. It is ephemeral (no eviction policy beyond TTL) and
// doubles as the reference Pool implementation and as the backbone of
// package-level tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/unkn0wn-root/tagcache/pool"
)

type entry struct {
	value []byte
	exp   time.Time // zero = no expiry
}

// Pool is a mutex-guarded map-backed implementation of pool.Pool.
type Pool struct {
	mu sync.Mutex
	m  map[string]entry
}

var _ pool.Pool = (*Pool)(nil)
var _ pool.Pipeliner = (*Pool)(nil)

// New returns an empty Pool.
func New() *Pool {
	return &Pool{m: make(map[string]entry)}
}

func (p *Pool) expired(e entry, now time.Time) bool {
	return !e.exp.IsZero() && now.After(e.exp)
}

func (p *Pool) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	if p.expired(e, time.Now()) {
		delete(p.m, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (p *Pool) GetMulti(_ context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range keys {
		e, ok := p.m[k]
		if !ok {
			continue
		}
		if p.expired(e, now) {
			delete(p.m, k)
			continue
		}
		out[k] = e.value
	}
	return out, nil
}

func (p *Pool) SetIfAbsent(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.m[key]; ok && !p.expired(e, time.Now()) {
		return false, nil
	}
	p.m[key] = p.newEntry(value, ttl)
	return true, nil
}

func (p *Pool) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[key] = p.newEntry(value, ttl)
	return true, nil
}

func (p *Pool) newEntry(value []byte, ttl time.Duration) entry {
	e := entry{value: value}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	return e
}

func (p *Pool) Delete(_ context.Context, keys []string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range keys {
		delete(p.m, k)
	}
	return true, nil
}

func (p *Pool) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.m[key]
	if !ok || p.expired(e, time.Now()) {
		return false, nil
	}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	} else {
		e.exp = time.Time{}
	}
	p.m[key] = e
	return true, nil
}

func (p *Pool) Clear(_ context.Context, prefix string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prefix == "" {
		p.m = make(map[string]entry)
		return true, nil
	}
	for k := range p.m {
		if strings.HasPrefix(k, prefix) {
			delete(p.m, k)
		}
	}
	return true, nil
}

func (p *Pool) Close(context.Context) error { return nil }

// Pipeline runs cmds against the same lock sequentially; it exists so
// callers that want pipelining against an in-memory backend (e.g. in
// tests of the tag store's pipelined create-if-absent path) get the
// same code path exercised, just without a network round-trip to
// amortize.
func (p *Pool) Pipeline(ctx context.Context, cmds []pool.Cmd) ([]pool.Result, error) {
	out := make([]pool.Result, len(cmds))
	for i, c := range cmds {
		switch c.Kind {
		case pool.CmdSetIfAbsent:
			ok, err := p.SetIfAbsent(ctx, c.Key, c.Value, c.TTL)
			out[i] = pool.Result{OK: ok, Err: err}
		case pool.CmdExpire:
			ok, err := p.Expire(ctx, c.Key, c.TTL)
			out[i] = pool.Result{OK: ok, Err: err}
		case pool.CmdDelete:
			ok, err := p.Delete(ctx, []string{c.Key})
			out[i] = pool.Result{OK: ok, Err: err}
		}
	}
	return out, nil
}
