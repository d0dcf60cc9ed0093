package tagcache

import (
	"context"
	"sort"
	"sync"
	"time"

	vc "github.com/unkn0wn-root/tagcache/codec"
	"github.com/unkn0wn-root/tagcache/internal/itemcodec"
	"github.com/unkn0wn-root/tagcache/internal/keys"
	"github.com/unkn0wn-root/tagcache/internal/tagmemo"
	"github.com/unkn0wn-root/tagcache/pool"
	"github.com/unkn0wn-root/tagcache/retry"
	"github.com/unkn0wn-root/tagcache/tagstore"
)

const defaultSweep = time.Hour

type adapter[V any] struct {
	ns         string
	itemPrefix string
	tagPrefix  string

	p     pool.Pool
	codec vc.Codec[V]
	tags  tagstore.Store
	memo  *tagmemo.Memo

	log   Logger
	hooks Hooks

	enabled      bool
	defaultTTL   time.Duration
	itemCost     ItemCostFunc
	ownsTagStore bool

	deferMu  sync.Mutex
	deferred map[string]*Item[V]
}

func newAdapter[V any](opts Options[V]) (*adapter[V], error) {
	if opts.Pool == nil {
		return nil, &InvalidArgumentError{Field: "Pool", Reason: "is required"}
	}
	if opts.Codec == nil {
		return nil, &InvalidArgumentError{Field: "Codec", Reason: "is required"}
	}
	if opts.Namespace == "" {
		return nil, &InvalidArgumentError{Field: "Namespace", Reason: "is required"}
	}
	if !keys.ValidNamespace(opts.Namespace) {
		return nil, &InvalidArgumentError{Field: "Namespace", Reason: "must match [-+_.A-Za-z0-9]*"}
	}

	a := &adapter[V]{
		ns:         opts.Namespace,
		itemPrefix: coalesce(opts.ItemPrefix, "$"),
		tagPrefix:  coalesce(opts.TagPrefix, "#"),
		codec:      opts.Codec,
		enabled:    !opts.Disabled,
		deferred:   make(map[string]*Item[V]),
	}

	a.log = coalesce[Logger](opts.Logger, NopLogger{})
	a.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	a.defaultTTL = coalesce(opts.DefaultLifetime, 10*time.Minute)

	if opts.Retry != nil {
		a.p = retry.NewProxy(opts.Pool, *opts.Retry, func(reason string) {
			a.log.Warn("retry config invalid, degrading to no-retry", Fields{"reason": reason})
			a.hooks.RetryConfigInvalid(reason)
		})
	} else {
		a.p = opts.Pool
	}

	if opts.ItemCost != nil {
		a.itemCost = opts.ItemCost
	} else {
		a.itemCost = func(string, []byte) int64 { return 1 }
	}

	memoTTL := coalesce(opts.KnownTagVersionsTTL, tagmemo.DefaultTTL)
	a.memo = tagmemo.New(memoTTL)

	if opts.TagStore != nil {
		a.tags = opts.TagStore
	} else {
		sweep := coalesce(opts.TagStoreSweepInterval, defaultSweep)
		// Derived from the raw option, not a.defaultTTL: DefaultLifetime==0
		// means "disable tag TTL", and a.defaultTTL has already been
		// coalesced to a nonzero item-TTL default by this point.
		a.tags = tagstore.NewLocal(tagstore.Options{TagsLifetime: tagsLifetime(opts.DefaultLifetime)}, sweep)
		a.ownsTagStore = true
	}

	return a, nil
}

func (a *adapter[V]) Enabled() bool { return a.enabled }

func (a *adapter[V]) Close(ctx context.Context) error {
	if a.ownsTagStore {
		_ = a.tags.Close(ctx)
	}
	return a.p.Close(ctx)
}

func (a *adapter[V]) itemKey(userKey string) string {
	return keys.ItemID(a.ns, a.itemPrefix, userKey)
}

func (a *adapter[V]) tagKey(tagName string) string {
	return keys.TagID(a.ns, a.tagPrefix, tagName)
}

// ---------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------

func (a *adapter[V]) HasItem(ctx context.Context, key string) (bool, error) {
	if !a.enabled {
		return false, nil
	}
	items := a.GetItems(ctx, []string{key})
	it, ok := items[key]
	return ok && it.IsHit(), nil
}

func (a *adapter[V]) GetItem(ctx context.Context, key string) *Item[V] {
	items := a.GetItems(ctx, []string{key})
	if it, ok := items[key]; ok {
		return it
	}
	return a.newMissItem(key)
}

// GetItems is the read path: flush deferred writes that
// shadow a requested key, clear the tag memo, multi-get, unpack,
// classify, batch-validate tags in one tag-store round trip, then
// batch-evict anything that failed validation.
//
// A single requested key is routed to getSingle instead, which calls
// pool.Pool.Get rather than GetMulti — the one method a retry.Proxy
// wrapping Options.Pool retries. GetItems of more than one key has no
// single-key retry target and keeps using GetMulti.
func (a *adapter[V]) GetItems(ctx context.Context, userKeys []string) map[string]*Item[V] {
	out := make(map[string]*Item[V], len(userKeys))
	if !a.enabled {
		for _, k := range userKeys {
			out[k] = a.newMissItem(k)
		}
		return out
	}
	if len(userKeys) == 0 {
		return out
	}

	if a.anyDeferred(userKeys) {
		_, _ = a.Commit(ctx)
	}
	a.memo.Clear()

	if len(userKeys) == 1 {
		k := userKeys[0]
		out[k] = a.getSingle(ctx, k)
		return out
	}

	storageToUser := make(map[string]string, len(userKeys))
	storageKeys := make([]string, 0, len(userKeys))
	for _, k := range userKeys {
		sk := a.itemKey(k)
		storageToUser[sk] = k
		storageKeys = append(storageKeys, sk)
	}

	raw, err := a.p.GetMulti(ctx, storageKeys)
	if err != nil {
		a.hooks.TagStoreError("GetMulti", err)
		for _, k := range userKeys {
			out[k] = a.newMissItem(k)
		}
		return out
	}

	type candidate struct {
		userKey    string
		storageKey string
		value      []byte
		tags       map[string][]byte
		expiry     *time.Time
		ctimeMS    uint32
	}

	var candidates []candidate
	var toEvict []string
	now := time.Now()

	for sk, payload := range raw {
		uk := storageToUser[sk]
		value, tagVersions, expiry, ctimeMS, err := itemcodec.Unpack(payload)
		if err != nil {
			toEvict = append(toEvict, sk)
			a.log.Debug("self-heal: corrupt payload", Fields{"key": sk, "err": err})
			a.hooks.SelfHealMiss(sk, "corrupt")
			continue
		}
		if expiry != nil && now.After(*expiry) {
			toEvict = append(toEvict, sk)
			a.hooks.SelfHealMiss(sk, "expired")
			continue
		}
		candidates = append(candidates, candidate{
			userKey: uk, storageKey: sk, value: value,
			tags: tagVersions, expiry: expiry, ctimeMS: ctimeMS,
		})
	}

	// Union every tag referenced by any candidate; one logical lookup.
	// The memo was cleared above, so this always goes to the tag store;
	// the result is memoized for a Commit that follows within the memo
	// window.
	tagNameSet := make(map[string]struct{})
	for _, c := range candidates {
		for name := range c.tags {
			tagNameSet[name] = struct{}{}
		}
	}
	current := a.resolveTagVersions(ctx, tagNameSet)

	for _, c := range candidates {
		hit := true
		for name, storedVer := range c.tags {
			curVer, ok := current[name]
			if !ok || string(curVer) != string(storedVer) {
				hit = false
				break
			}
		}
		decoded, decErr := a.codec.Decode(c.value)
		if decErr != nil {
			toEvict = append(toEvict, c.storageKey)
			a.hooks.SelfHealMiss(c.storageKey, "decode_error")
			out[c.userKey] = a.newMissItem(c.userKey)
			continue
		}
		if !hit {
			toEvict = append(toEvict, c.storageKey)
			a.hooks.SelfHealMiss(c.storageKey, "tag_mismatch")
			out[c.userKey] = a.newMissItem(c.userKey)
			continue
		}
		it := &Item[V]{
			key: c.userKey, value: decoded, isHit: true,
			expiry: c.expiry, ctime: time.Duration(c.ctimeMS) * time.Millisecond,
			owner: a, state: stateStaged,
		}
		if len(c.tags) > 0 {
			it.tags = make(map[string]struct{}, len(c.tags))
			for name := range c.tags {
				it.tags[name] = struct{}{}
			}
		}
		out[c.userKey] = it
	}

	for _, k := range userKeys {
		if _, ok := out[k]; !ok {
			out[k] = a.newMissItem(k)
		}
	}

	if len(toEvict) > 0 {
		_, _ = a.p.Delete(ctx, toEvict)
	}

	return out
}

// getSingle is the single-key counterpart of GetItems' bulk path: same
// unpack/expiry/tag-validation/decode pipeline, but reached through
// pool.Pool.Get so a retry.Proxy wrapping Options.Pool can actually
// retry a cold read against its configured distribution before this
// call reports a miss.
func (a *adapter[V]) getSingle(ctx context.Context, userKey string) *Item[V] {
	sk := a.itemKey(userKey)

	payload, ok, err := a.p.Get(ctx, sk)
	if err != nil {
		a.hooks.TagStoreError("Get", err)
		return a.newMissItem(userKey)
	}
	if !ok {
		return a.newMissItem(userKey)
	}

	value, tagVersions, expiry, ctimeMS, err := itemcodec.Unpack(payload)
	if err != nil {
		a.log.Debug("self-heal: corrupt payload", Fields{"key": sk, "err": err})
		a.hooks.SelfHealMiss(sk, "corrupt")
		_, _ = a.p.Delete(ctx, []string{sk})
		return a.newMissItem(userKey)
	}
	if expiry != nil && time.Now().After(*expiry) {
		a.hooks.SelfHealMiss(sk, "expired")
		_, _ = a.p.Delete(ctx, []string{sk})
		return a.newMissItem(userKey)
	}

	tagNameSet := make(map[string]struct{}, len(tagVersions))
	for name := range tagVersions {
		tagNameSet[name] = struct{}{}
	}
	current := a.resolveTagVersions(ctx, tagNameSet)

	for name, storedVer := range tagVersions {
		curVer, ok := current[name]
		if !ok || string(curVer) != string(storedVer) {
			a.hooks.SelfHealMiss(sk, "tag_mismatch")
			_, _ = a.p.Delete(ctx, []string{sk})
			return a.newMissItem(userKey)
		}
	}

	decoded, decErr := a.codec.Decode(value)
	if decErr != nil {
		a.hooks.SelfHealMiss(sk, "decode_error")
		_, _ = a.p.Delete(ctx, []string{sk})
		return a.newMissItem(userKey)
	}

	it := &Item[V]{
		key: userKey, value: decoded, isHit: true,
		expiry: expiry, ctime: time.Duration(ctimeMS) * time.Millisecond,
		owner: a, state: stateStaged,
	}
	if len(tagVersions) > 0 {
		it.tags = make(map[string]struct{}, len(tagVersions))
		for name := range tagVersions {
			it.tags[name] = struct{}{}
		}
	}
	return it
}

func (a *adapter[V]) newMissItem(key string) *Item[V] {
	return &Item[V]{key: key, isHit: false, owner: a, state: stateStaged}
}

// resolveTagVersions answers the union of names against the recent-read
// memo first, falling back to one tag-store round trip for whatever the
// memo didn't have, then stores the merged result back for the next
// caller within the memo window. Returns nil for an empty names set.
func (a *adapter[V]) resolveTagVersions(ctx context.Context, names map[string]struct{}) map[string][]byte {
	if len(names) == 0 {
		return nil
	}

	result := make(map[string][]byte, len(names))
	var missing []string

	if memoized, ok := a.memo.Take(); ok {
		for name := range names {
			if v, found := memoized[name]; found {
				result[name] = v
			} else {
				missing = append(missing, name)
			}
		}
	} else {
		for name := range names {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		tagIDs := make([]string, len(missing))
		idToName := make(map[string]string, len(missing))
		for i, name := range missing {
			id := a.tagKey(name)
			tagIDs[i] = id
			idToName[id] = name
		}
		got, err := a.tags.GetOrCreate(ctx, tagIDs)
		if err != nil {
			a.log.Warn("tag-store read failed", Fields{"tags": len(tagIDs), "err": err})
			a.hooks.TagStoreError("GetOrCreate", err)
		}
		for id, v := range got {
			result[idToName[id]] = v
		}
	}

	a.memo.Store(result)
	return result
}

// ---------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------

func (a *adapter[V]) Save(ctx context.Context, item *Item[V]) (bool, error) {
	if ok, err := a.stageForCommit(item); !ok {
		return false, err
	}
	ok, err := a.Commit(ctx)
	return ok, err
}

func (a *adapter[V]) SaveDeferred(item *Item[V]) (bool, error) {
	return a.stageForCommit(item)
}

func (a *adapter[V]) stageForCommit(item *Item[V]) (bool, error) {
	if item == nil || item.owner != a {
		return false, ErrInvalidItemKind
	}
	if !a.enabled {
		return true, nil
	}
	item.state = stateStaged
	a.deferMu.Lock()
	a.deferred[item.key] = item // at most one entry per key; later save supersedes
	a.deferMu.Unlock()
	return true, nil
}

func (a *adapter[V]) anyDeferred(userKeys []string) bool {
	a.deferMu.Lock()
	defer a.deferMu.Unlock()
	if len(a.deferred) == 0 {
		return false
	}
	for _, k := range userKeys {
		if _, ok := a.deferred[k]; ok {
			return true
		}
	}
	return false
}

// Commit is the write path: union tags across every deferred
// item, acquire their versions *before* any value function runs
// (the ordering point that gives the passive optimistic-concurrency
// guarantee), drop items referencing a tag the store could not
// produce a version for, compute+pack+persist the rest, and report
// whether every deferred item made it to the pool.
func (a *adapter[V]) Commit(ctx context.Context) (bool, error) {
	a.deferMu.Lock()
	batch := a.deferred
	a.deferred = make(map[string]*Item[V])
	a.deferMu.Unlock()

	defer a.memo.Clear()

	if len(batch) == 0 {
		return true, nil
	}
	if !a.enabled {
		return true, nil
	}

	tagNameSet := make(map[string]struct{})
	for _, it := range batch {
		for name := range it.newTags {
			tagNameSet[name] = struct{}{}
		}
	}

	// Unlike GetItems, Commit does not clear the tag-version memo first:
	// a version the caller just read (e.g. via HasItem/GetItem on an
	// overlapping tag, still within the memo window) is still a valid
	// "acquired before this value function runs" read, so it is fair
	// to reuse. Whatever this call resolves is then stored back for
	// the next operation and only cleared once commit finishes.
	versions := a.resolveTagVersions(ctx, tagNameSet)

	attempted := len(batch)
	persisted := 0

	// Deterministic iteration order for reproducible tests/logs.
	keysInOrder := make([]string, 0, len(batch))
	for k := range batch {
		keysInOrder = append(keysInOrder, k)
	}
	sort.Strings(keysInOrder)

	for _, userKey := range keysInOrder {
		it := batch[userKey]
		tagVersions := make(map[string][]byte, len(it.newTags))
		rejected := false
		for name := range it.newTags {
			v, ok := versions[name]
			if !ok {
				rejected = true
				break
			}
			tagVersions[name] = v
		}
		if rejected {
			it.state = stateRejected
			continue
		}
		it.state = stateTagsAcquired

		var value V
		if it.valueFn != nil {
			start := time.Now()
			v, err := it.valueFn(ctx)
			if err != nil {
				it.state = stateDropped
				continue
			}
			value = v
			it.ctime += time.Since(start)
		} else if it.hasValue {
			value = it.value
		} else {
			// Neither a value nor a producer was staged: nothing to persist.
			it.state = stateDropped
			continue
		}
		it.state = stateComputed

		encoded, err := a.codec.Encode(value)
		if err != nil {
			it.state = stateDropped
			continue
		}

		ttl := it.ttl
		if ttl == 0 {
			ttl = a.defaultTTL
		}
		var expiry *time.Time
		if it.expiry != nil {
			expiry = it.expiry
		} else if ttl > 0 {
			t := time.Now().Add(ttl)
			expiry = &t
		}

		var ctimeMS uint32 = itemcodec.MaxCtimeMS
		if ms := it.ctime / time.Millisecond; ms < itemcodec.MaxCtimeMS {
			ctimeMS = uint32(ms)
		}
		payload, err := itemcodec.Pack(encoded, tagVersions, expiry, ctimeMS)
		if err != nil {
			it.state = stateDropped
			continue
		}
		it.state = statePacked

		sk := a.itemKey(userKey)
		ok, err := a.p.Set(ctx, sk, payload, a.itemCost(sk, payload), ttl)
		if err != nil || !ok {
			if err == nil {
				a.hooks.ProviderSetRejected(sk)
			}
			it.state = stateDropped
			continue
		}

		it.state = statePersisted
		it.value = value
		it.isHit = true
		it.expiry = expiry
		persisted++
	}

	if persisted < attempted {
		a.log.Warn("partial commit", Fields{"attempted": attempted, "persisted": persisted})
		a.hooks.CommitPartial(attempted, persisted)
	}

	return persisted == attempted, nil
}

// ---------------------------------------------------------------------
// Deletes & invalidation
// ---------------------------------------------------------------------

func (a *adapter[V]) DeleteItem(ctx context.Context, key string) (bool, error) {
	return a.DeleteItems(ctx, []string{key})
}

func (a *adapter[V]) DeleteItems(ctx context.Context, userKeys []string) (bool, error) {
	if !a.enabled || len(userKeys) == 0 {
		return true, nil
	}
	a.deferMu.Lock()
	for _, k := range userKeys {
		delete(a.deferred, k)
	}
	a.deferMu.Unlock()

	storageKeys := make([]string, len(userKeys))
	for i, k := range userKeys {
		storageKeys[i] = a.itemKey(k)
	}
	ok, err := a.p.Delete(ctx, storageKeys)
	if err != nil {
		a.hooks.TagStoreError("Delete", err)
		return false, nil
	}
	return ok, nil
}

// InvalidateTags clears the tag memo, then deletes the tag records —
// never overwrites them (overwriting under memory
// pressure can silently fail and leave a stale-but-plausible version;
// deletion is atomic and always forces the next GetOrCreate to mint a
// fresh, different token).
func (a *adapter[V]) InvalidateTags(ctx context.Context, tagNames []string) (bool, error) {
	if !a.enabled || len(tagNames) == 0 {
		return true, nil
	}
	a.memo.Clear()
	tagIDs := make([]string, len(tagNames))
	for i, t := range tagNames {
		tagIDs[i] = a.tagKey(t)
	}
	if err := a.tags.Delete(ctx, tagIDs); err != nil {
		a.hooks.TagStoreError("Delete", err)
		return false, nil
	}
	return true, nil
}

// Clear discards deferred items under prefix (or all, if prefix==""),
// clears the tag memo, and forwards to the pool's prefix clear.
func (a *adapter[V]) Clear(ctx context.Context, prefix string) (bool, error) {
	a.deferMu.Lock()
	for k := range a.deferred {
		if prefix == "" || hasPrefix(k, prefix) {
			delete(a.deferred, k)
		}
	}
	a.deferMu.Unlock()

	a.memo.Clear()

	fullPrefix := a.ns + ":" + a.itemPrefix + prefix
	ok, err := a.p.Clear(ctx, fullPrefix)
	if err != nil {
		a.hooks.TagStoreError("Clear", err)
		return false, nil
	}
	return ok, nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
