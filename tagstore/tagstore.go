// Package tagstore implements the tag-version store protocol: atomic
// create-if-absent and read of per-tag version tokens, with an
// optional TTL-refresh heuristic for hit tags.
package tagstore

import (
	"context"
	"time"
)

// Store answers get-or-create and delete for a batch of tag IDs.
//
// GetOrCreate sorts tagIDs internally (canonical order, both for
// determinism and to avoid lock-ordering deadlocks on backends that
// serialize writes), multi-gets their current versions, and for each
// miss generates a fresh token and issues a create-if-absent. A
// losing create is not retried; the store may then return fewer tags
// than requested, and callers treat an unknown tag as invalidation.
type Store interface {
	GetOrCreate(ctx context.Context, tagIDs []string) (map[string][]byte, error)
	Delete(ctx context.Context, tagIDs []string) error
	Close(ctx context.Context) error
}

// Options configures TTL behavior shared by every Store implementation.
type Options struct {
	// TagsLifetime is the TTL applied to newly created tag tokens. 0
	// means unbounded (no TTL). When positive, it must already satisfy
	// the "floored at 86400s, ≥ 3x default item lifetime" rule — that
	// arithmetic lives in the adapter's Options, not here.
	TagsLifetime time.Duration
}

// refreshProbability drives the TTL-refresh heuristic: gated on
// TagsLifetime>0, independently true for each hit tag with probability
// 60/86400 (≈ once every 60s on average for a tag read continuously).
const refreshProbability = 60.0 / 86400.0
