package tagstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/unkn0wn-root/tagcache/internal/tagtoken"
	"github.com/unkn0wn-root/tagcache/internal/xrand"
)

type localEntry struct {
	version  []byte
	expires  time.Time // zero = no TTL
	lastSeen time.Time
}

// Local keeps tag versions in-process. Good for a single-replica
// deployment or tests; does not survive restarts and is not shared
// across processes (use tagstore/redis for that).
type Local struct {
	mu   sync.Mutex
	m    map[string]localEntry
	opts Options

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
}

var _ Store = (*Local)(nil)

// NewLocal creates a Local store. sweepInterval<=0 disables the
// background pruning goroutine (entries then only expire lazily, on
// access).
func NewLocal(opts Options, sweepInterval time.Duration) *Local {
	s := &Local{
		m:    make(map[string]localEntry),
		opts: opts,
	}
	if sweepInterval > 0 {
		s.ticker = time.NewTicker(sweepInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go s.sweepLoop()
	}
	return s
}

func (s *Local) sweepLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Local) sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.m {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(s.m, k)
		}
	}
}

// GetOrCreate: sort, multi-get, create-if-absent for misses,
// TTL-refresh hits by chance.
func (s *Local) GetOrCreate(_ context.Context, tagIDs []string) (map[string][]byte, error) {
	if len(tagIDs) == 0 {
		return map[string][]byte{}, nil
	}
	sorted := make([]string, len(tagIDs))
	copy(sorted, tagIDs)
	sort.Strings(sorted)

	out := make(map[string][]byte, len(sorted))
	now := time.Now()

	var toRefresh []string

	s.mu.Lock()
	for _, id := range sorted {
		e, ok := s.m[id]
		if ok && (e.expires.IsZero() || now.Before(e.expires)) {
			out[id] = e.version
			e.lastSeen = now
			s.m[id] = e
			toRefresh = append(toRefresh, id)
			continue
		}
		// missing (or lazily-expired): create-if-absent. Local has no
		// concurrent writer other than this goroutine's own lock, so
		// creation always "wins" here — the atomicity requirement
		// matters for tagstore/redis, where multiple processes race.
		tok := tagtoken.New()
		var exp time.Time
		if s.opts.TagsLifetime > 0 {
			exp = now.Add(s.opts.TagsLifetime)
		}
		s.m[id] = localEntry{version: tok, expires: exp, lastSeen: now}
		out[id] = tok
	}
	s.mu.Unlock()

	if s.opts.TagsLifetime > 0 && len(toRefresh) == len(sorted) {
		// All requested tags were hits (nothing created): apply the
		// TTL-refresh heuristic independently per hit tag.
		s.refresh(toRefresh, now)
	}

	return out, nil
}

func (s *Local) refresh(ids []string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if xrand.Float64() >= refreshProbability {
			continue
		}
		e, ok := s.m[id]
		if !ok {
			continue
		}
		e.expires = now.Add(s.opts.TagsLifetime)
		s.m[id] = e
	}
}

// Delete removes tag records atomically (best-effort for a local map:
// a single mutex critical section is already atomic w.r.t. concurrent
// GetOrCreate in this process).
func (s *Local) Delete(_ context.Context, tagIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range tagIDs {
		delete(s.m, id)
	}
	return nil
}

func (s *Local) Close(context.Context) error {
	if s.stopCh != nil {
		close(s.stopCh)
		s.ticker.Stop()
		s.wg.Wait()
	}
	return nil
}

