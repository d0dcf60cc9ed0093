package retry

import (
	"context"
	"time"

	"github.com/unkn0wn-root/tagcache/pool"
)

// Proxy wraps a pool.Pool, retrying only single-key Get on miss.
// Every other method is forwarded untouched via the embedded Pool.
type Proxy struct {
	pool.Pool

	strategy   Strategy
	timeout    time.Duration
	maxRetries int
}

// NewProxy validates cfg and builds a Proxy around p. Invalid
// configuration degrades to NoRetry rather than failing construction;
// onInvalid (may be nil) is called with a human-readable reason so the
// caller can log/hook it.
func NewProxy(p pool.Pool, cfg Config, onInvalid func(reason string)) *Proxy {
	if onInvalid == nil {
		onInvalid = func(string) {}
	}
	strategy, timeout, maxRetries := cfg.resolve(onInvalid)
	return &Proxy{Pool: p, strategy: strategy, timeout: timeout, maxRetries: maxRetries}
}

// Get retries a miss according to the configured Strategy, sleeping
// between attempts and never exceeding the configured timeout in total.
func (rp *Proxy) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok, err := rp.Pool.Get(ctx, key)
	if err != nil || ok {
		return v, ok, err
	}

	plan := rp.strategy.Plan(rp.timeout, rp.maxRetries)
	if len(plan) == 0 {
		return v, ok, err
	}

	start := time.Now()
	for i, interval := range plan {
		adjusted, abort := adjustInterval(interval, start, rp.timeout, i)
		if abort {
			return v, ok, err
		}
		if adjusted > 0 {
			t := time.NewTimer(adjusted)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return nil, false, ctx.Err()
			}
		}

		v, ok, err = rp.Pool.Get(ctx, key)
		if err != nil || ok {
			return v, ok, err
		}
	}
	return v, ok, err
}

// adjustInterval shrinks next so that elapsed+next never exceeds
// timeout; abort=true if the budget is already spent (a negative
// remainder), in which case the caller must stop retrying.
func adjustInterval(next time.Duration, start time.Time, timeout time.Duration, retryNo int) (adjusted time.Duration, abort bool) {
	elapsed := time.Since(start)
	remaining := timeout - elapsed
	if remaining <= 0 {
		return 0, true
	}
	if next > remaining {
		return remaining, false
	}
	return next, false
}
