package tagcache

import (
	"context"
	"time"
)

// itemState is the deferred Cache Item's state machine:
//
//	Staged -> (TagsAcquired | Rejected) -> (Computed -> Packed -> Persisted) | Dropped
//
// Persisted, Dropped, and Rejected are terminal.
type itemState int

const (
	stateStaged itemState = iota
	stateTagsAcquired
	stateRejected
	stateComputed
	statePacked
	statePersisted
	stateDropped
)

// ValueFunc is a deferred value producer: invoked by Commit only after
// every tag the item carries has had its version acquired (the
// tag-before-value ordering that delivers passive optimistic
// concurrency). Its wall-clock run time is added to the item's ctime.
type ValueFunc[V any] func(ctx context.Context) (V, error)

// Item is the adapter's transient Cache Item: created by GetItem,
// populated by the caller, handed to Save/SaveDeferred, and discarded
// after Commit.
type Item[V any] struct {
	key   string
	value V
	isHit bool

	expiry *time.Time
	ctime  time.Duration // accumulated value-function compute time

	tags map[string]struct{} // currently-attached tag names (from a read)

	// staging, populated by the caller before Save/SaveDeferred
	newTags  map[string]struct{}
	valueFn  ValueFunc[V]
	hasValue bool
	ttl      time.Duration // 0 = adapter default
	owner    any           // *Adapter[V] that created this item, for provenance checks

	state itemState
}

// Key returns the user-supplied key this item was fetched/created for.
func (it *Item[V]) Key() string { return it.key }

// IsHit reports whether GetItem/GetItems found a currently-valid entry
// for this key. Only meaningful on an item returned by a read.
func (it *Item[V]) IsHit() bool { return it.isHit }

// Get returns the cached value (zero value if !IsHit()).
func (it *Item[V]) Get() V { return it.value }

// Set stages a value to persist on Save/SaveDeferred + Commit.
func (it *Item[V]) Set(v V) {
	it.value = v
	it.hasValue = true
	it.valueFn = nil
}

// SetFunc stages a deferred producer instead of a precomputed value.
// The adapter calls fn only after tag-version acquisition succeeds.
func (it *Item[V]) SetFunc(fn ValueFunc[V]) {
	it.valueFn = fn
	it.hasValue = false
}

// Tag attaches tag names to the item. Re-attaching an already-attached
// tag is a no-op.
func (it *Item[V]) Tag(tags ...string) {
	if it.newTags == nil {
		it.newTags = make(map[string]struct{}, len(tags))
	}
	for _, t := range tags {
		it.newTags[t] = struct{}{}
	}
}

// Tags returns the tag names currently attached for staging.
func (it *Item[V]) Tags() []string {
	out := make([]string, 0, len(it.newTags))
	for t := range it.newTags {
		out = append(out, t)
	}
	return out
}

// ExpiresAfter sets the item's TTL relative to persistence time. 0
// means "use the adapter's default lifetime".
func (it *Item[V]) ExpiresAfter(d time.Duration) { it.ttl = d }

// ExpiresAt sets an absolute expiry.
func (it *Item[V]) ExpiresAt(t time.Time) { it.expiry = &t }

// Expiry returns the expiry observed on read, or nil if the stored
// item carried no expiry metadata.
func (it *Item[V]) Expiry() *time.Time { return it.expiry }

// Ctime returns the accumulated value-function compute time: recorded
// at save time for a written item, or decoded from the stored metadata
// for an item returned by a read (0 when no ValueFunc ran, or the
// stored item carried no metadata).
func (it *Item[V]) Ctime() time.Duration { return it.ctime }
