// Package asynchook wraps a tagcache.Hooks so a slow sink (a metrics
// exporter, a remote log shipper) never blocks the adapter's hot path.
// Events are queued to a fixed pool of workers and dropped, not
// blocked on, when the queue is full.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker, queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := tagcache.New[User](tagcache.Options[User]{
//	    Namespace: "app.prod.user",
//	    Pool:      pool,
//	    Codec:     codec.JSON[User]{},
//	    Hooks:     hooks,
//	})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/tagcache"
)

type Hooks struct {
	inner tagcache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ tagcache.Hooks = (*Hooks)(nil)

// New starts workers goroutines draining a queue of length qlen.
// workers<=0 defaults to 1; qlen<=0 defaults to 1024.
func New(inner tagcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close stops accepting new events, drains the queue, and waits for
// every worker to finish. Safe to call more than once.
func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // queue full: drop rather than block the caller
	}
}

func (h *Hooks) SelfHealMiss(itemKey, reason string) {
	h.try(func() { h.inner.SelfHealMiss(itemKey, reason) })
}
func (h *Hooks) TagStoreError(op string, err error) {
	h.try(func() { h.inner.TagStoreError(op, err) })
}
func (h *Hooks) ProviderSetRejected(itemKey string) {
	h.try(func() { h.inner.ProviderSetRejected(itemKey) })
}
func (h *Hooks) CommitPartial(attempted, persisted int) {
	h.try(func() { h.inner.CommitPartial(attempted, persisted) })
}
func (h *Hooks) RetryConfigInvalid(reason string) {
	h.try(func() { h.inner.RetryConfigInvalid(reason) })
}
