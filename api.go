package tagcache

import (
	"context"
	"time"

	vc "github.com/unkn0wn-root/tagcache/codec"
	"github.com/unkn0wn-root/tagcache/pool"
	"github.com/unkn0wn-root/tagcache/retry"
	"github.com/unkn0wn-root/tagcache/tagstore"
)

// ItemCostFunc computes a backend-specific cost for a packed payload,
// threaded into Pool.Set for cost-aware pools (e.g. Ristretto).
type ItemCostFunc func(key string, packed []byte) int64

// Tags is a convenience alias for the set of tag names passed to
// InvalidateTags.
type Tags = []string

// Adapter is the tag-aware core's public contract.
type Adapter[V any] interface {
	Enabled() bool
	Close(ctx context.Context) error

	HasItem(ctx context.Context, key string) (bool, error)
	GetItem(ctx context.Context, key string) *Item[V]
	GetItems(ctx context.Context, keys []string) map[string]*Item[V]

	Save(ctx context.Context, item *Item[V]) (bool, error)
	SaveDeferred(item *Item[V]) (bool, error)

	DeleteItem(ctx context.Context, key string) (bool, error)
	DeleteItems(ctx context.Context, keys []string) (bool, error)

	InvalidateTags(ctx context.Context, tags []string) (bool, error)
	Commit(ctx context.Context) (bool, error)
	Clear(ctx context.Context, prefix string) (bool, error)
}

// Options configures a new Adapter. Namespace, Pool and Codec are required;
// everything else has a sensible default.
type Options[V any] struct {
	// Required.
	Namespace string // must match [-+_.A-Za-z0-9]*
	Pool      pool.Pool
	Codec     vc.Codec[V]

	// Tag storage. nil => tagstore.NewLocal with the computed
	// tags-lifetime and an hourly sweep.
	TagStore tagstore.Store

	// Retry wraps Pool's single-key Get in a retry.Proxy, so a cold
	// GetItem/HasItem read is retried against the configured
	// distribution instead of reporting an immediate miss. nil => no
	// wrapping, no retry. Invalid Retry configuration degrades to
	// retry.NoRetry and reports through Hooks.RetryConfigInvalid rather
	// than failing New.
	Retry *retry.Config

	Logger Logger // nil => NopLogger
	Hooks  Hooks  // nil => NopHooks

	DefaultLifetime        time.Duration // 0 => 10m; also seeds tags-lifetime (see below)
	KnownTagVersionsTTL    time.Duration // 0 => 150ms (tag-version memo window)
	ItemCost               ItemCostFunc  // nil => constant 1
	Disabled               bool
	TagStoreSweepInterval  time.Duration // 0 => 1h, only used for the default Local tag store

	// ItemPrefix/TagPrefix are the reserved key markers. Empty
	// defaults to "$" and "#" respectively.
	ItemPrefix string
	TagPrefix  string
}

// tagsLifetime computes tags_lifetime = max(86400, 3 ×
// default_lifetime). DefaultLifetime==0 disables tag TTL entirely
// (unbounded tag records).
func tagsLifetime(defaultLifetime time.Duration) time.Duration {
	if defaultLifetime <= 0 {
		return 0
	}
	const floor = 86400 * time.Second
	lifetime := defaultLifetime * 3
	if lifetime < floor {
		lifetime = floor
	}
	return lifetime
}

// New constructs a tag-aware Adapter[V].
func New[V any](opts Options[V]) (Adapter[V], error) {
	return newAdapter[V](opts)
}
