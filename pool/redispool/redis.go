// Package redispool is a Redis-backed Pool: SET/GET/DEL for item and
// tag storage, SET NX EX for the tag store's create-if-absent path,
// and a pipeline for batching conditional creates.
package redispool

import (
	"context"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/tagcache/pool"
)

var ErrNilClient = errors.New("redispool: nil client")

type Pool struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var _ pool.Pool = (*Pool)(nil)
var _ pool.Pipeliner = (*Pool)(nil)

type Config struct {
	Client goredis.UniversalClient
	// CloseClient should be true only if this Pool exclusively owns
	// the client (no one else shares the *redis.Client/ClusterClient).
	CloseClient bool
}

func New(cfg Config) (*Pool, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Pool{rdb: cfg.Client, closeClient: cfg.CloseClient}, nil
}

func (p *Pool) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Pool) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}
	vals, err := p.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(keys))
	for i, v := range vals {
		switch vv := v.(type) {
		case nil:
			// miss, omit from result
		case string:
			out[keys[i]] = []byte(vv)
		case []byte:
			out[keys[i]] = vv
		}
	}
	return out, nil
}

func (p *Pool) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return p.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (p *Pool) Set(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	if err := p.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Pool) Delete(ctx context.Context, keys []string) (bool, error) {
	if len(keys) == 0 {
		return true, nil
	}
	if err := p.rdb.Del(ctx, keys...).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Pool) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return p.rdb.Expire(ctx, key, ttl).Result()
}

// Clear deletes everything under prefix using SCAN (never KEYS, which
// blocks the server on large keyspaces). prefix=="" clears the whole
// logical database the client is bound to.
func (p *Pool) Clear(ctx context.Context, prefix string) (bool, error) {
	pattern := prefix + "*"
	if prefix == "" {
		pattern = "*"
	}
	var cursor uint64
	var toDelete []string
	for {
		keys, next, err := p.rdb.Scan(ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return false, err
		}
		toDelete = append(toDelete, keys...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if len(toDelete) == 0 {
		return true, nil
	}
	if err := p.rdb.Del(ctx, toDelete...).Err(); err != nil {
		return false, err
	}
	return true, nil
}

// Pipeline batches cmds into one Redis round-trip via a pipeliner.
func (p *Pool) Pipeline(ctx context.Context, cmds []pool.Cmd) ([]pool.Result, error) {
	if len(cmds) == 0 {
		return nil, nil
	}
	pipe := p.rdb.Pipeline()
	nxCmds := make([]*goredis.BoolCmd, len(cmds))
	for i, c := range cmds {
		switch c.Kind {
		case pool.CmdSetIfAbsent:
			nxCmds[i] = pipe.SetNX(ctx, c.Key, c.Value, c.TTL)
		case pool.CmdExpire:
			nxCmds[i] = pipe.Expire(ctx, c.Key, c.TTL)
		case pool.CmdDelete:
			pipe.Del(ctx, c.Key)
		}
	}
	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, err
	}
	out := make([]pool.Result, len(cmds))
	for i, cmd := range nxCmds {
		if cmd == nil {
			out[i] = pool.Result{OK: true}
			continue
		}
		ok, cerr := cmd.Result()
		out[i] = pool.Result{OK: ok, Err: cerr}
	}
	return out, nil
}

func (p *Pool) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !strings.Contains(err.Error(), "closed") {
			return err
		}
	}
	return nil
}
