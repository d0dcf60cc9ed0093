// Package tagcache implements a tag-aware cache façade: safe,
// guaranteed tag-based invalidation layered on top of any key/value
// Pool, including ephemeral pools subject to LRU eviction or
// out-of-memory conditions.
//
// An item saved with a set of tags stores the tag *versions* current
// at save time. A read is a hit only if every stored tag version still
// matches the tag store's current version for that tag — so
// invalidating a tag is a single delete in the tag store, not a sweep
// over every item that carries it.
//
// Components:
//   - internal/itemcodec: packs/unpacks the opaque per-item payload.
//   - tagstore: the tag-version store protocol (Local, in-process; or
//     tagstore/redis, shared across replicas and restarts).
//   - internal/tagmemo: per-operation memo of recently read tag
//     versions.
//   - Adapter[V] (this package): orchestrates read validation,
//     deferred writes, and tag-version acquisition ordering.
//   - retry: a Pool decorator that retries a cold single-key Get
//     according to a statistical distribution, to spread callers'
//     re-reads and mitigate cache stampedes.
//
// Keys:
//
//	<ns>:$<user_key>   - item records
//	<ns>:#<tag_name>   - tag-version records
//
// Ordering guarantee (passive optimistic concurrency): within one
// Commit, tag versions are acquired before the deferred value function
// runs. If another process invalidates a tag in between, the writer's
// stored version is already stale by the time it is persisted, and the
// next reader misses.
package tagcache
