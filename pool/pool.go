// Package pool defines the byte-store abstraction both the item pool
// and the tag-version pool are built on: both satisfy the same
// contract. Implementations must be safe for concurrent use and
// byte-for-byte transparent: Get must return exactly the bytes
// previously passed to Set for the same key.
package pool

import (
	"context"
	"time"
)

// Pool is a minimal byte store with TTLs and the atomic primitives the
// tag-version store's create-if-absent protocol depends on.
type Pool interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// GetMulti returns a map of the keys that were found; keys must not
	// be retried on miss at this layer (callers needing retry use the
	// retry.Proxy wrapping single-key Get).
	GetMulti(ctx context.Context, keys []string) (map[string][]byte, error)

	// SetIfAbsent atomically creates key only if it does not already
	// exist. ok=false means another writer already holds the key (or
	// the write lost a race); the pool is left unmodified in that case.
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (ok bool, err error)

	// Set unconditionally stores value with the given TTL (0 = no
	// expiry where the backend supports it). ok=false signals the
	// backend rejected the write under memory pressure, not an error.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Delete removes keys, best-effort. Reports overall success; a
	// backend may still partially delete on error.
	Delete(ctx context.Context, keys []string) (ok bool, err error)

	// Expire refreshes a key's TTL without rewriting its value.
	// Backends without per-key TTL report ok=false, err=nil.
	Expire(ctx context.Context, key string, ttl time.Duration) (ok bool, err error)

	// Clear removes all keys under prefix, or everything if prefix=="".
	// Backends without native prefix scanning may fall back to a full
	// clear when prefix=="" and report ok=false for a non-empty prefix.
	Clear(ctx context.Context, prefix string) (ok bool, err error)

	// Close releases resources.
	Close(ctx context.Context) error
}

// Pipeliner is an optional capability: a pool that can batch a set of
// commands into one network round-trip. The tag-version store uses
// this to pipeline conditional creates across many missing tags.
type Pipeliner interface {
	// Pipeline executes cmds and returns one Result per command, in
	// order. Implementations MAY execute cmds concurrently internally
	// but MUST preserve result ordering.
	Pipeline(ctx context.Context, cmds []Cmd) ([]Result, error)
}

// CmdKind enumerates the pipelineable operations.
type CmdKind int

const (
	CmdSetIfAbsent CmdKind = iota
	CmdExpire
	CmdDelete
)

// Cmd describes one pipelined operation.
type Cmd struct {
	Kind  CmdKind
	Key   string
	Value []byte
	TTL   time.Duration
}

// Result is the outcome of one pipelined Cmd.
type Result struct {
	OK  bool
	Err error
}
