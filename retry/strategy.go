// Package retry wraps a pool.Pool so that a miss on a single-key Get is
// retried a few times before giving up, spreading callers' re-reads in
// time instead of letting every one of them fall through to the origin
// at once (cache-stampede mitigation). Multi-key, write, and
// delete operations pass through untouched.
package retry

import (
	"time"

	"github.com/unkn0wn-root/tagcache/internal/xrand"
)

// Strategy plans the sleep intervals between retry attempts. Plan is
// called once per retried Get with the configured timeout and
// maxRetries; the returned slice is the eager plan, later trimmed
// attempt-by-attempt by adjustInterval as wall-clock time is spent.
type Strategy interface {
	Name() string
	Plan(timeout time.Duration, maxRetries int) []time.Duration
}

// NoRetry never retries: Plan always returns an empty slice.
type NoRetry struct{}

func (NoRetry) Name() string                                      { return "no_retry" }
func (NoRetry) Plan(time.Duration, int) []time.Duration            { return nil }

// FlatEvenIntervals draws a retry count k uniformly from [0,maxRetries]
// (including zero) and sleeps timeout/maxRetries between each of the k
// attempts.
type FlatEvenIntervals struct{}

func (FlatEvenIntervals) Name() string { return "flat_even_intervals" }

func (FlatEvenIntervals) Plan(timeout time.Duration, maxRetries int) []time.Duration {
	if maxRetries <= 0 {
		return nil
	}
	k := xrand.IntN(maxRetries + 1)
	step := timeout / time.Duration(maxRetries)
	plan := make([]time.Duration, k)
	for i := range plan {
		plan[i] = step
	}
	return plan
}

// FlatGeometricIntervals is the default strategy: intervals grow by a
// constant factor so the distribution of a miss resolving is flat on
// average across [0,timeout] but with a spike at the very end (the
// proportion (factor-1)/factor of the mass falls in the last
// interval) — most callers wake early to re-check, a few wait the
// full budget.
type FlatGeometricIntervals struct {
	Factor float64 // > 1
}

func (FlatGeometricIntervals) Name() string { return "flat_geometric_intervals" }

func (s FlatGeometricIntervals) Plan(timeout time.Duration, maxRetries int) []time.Duration {
	if maxRetries <= 0 {
		return nil
	}
	f := s.Factor
	if f <= 1 {
		f = 2
	}
	// Geometric series summing to timeout: interval_i = first * f^i.
	sum := 0.0
	pow := 1.0
	for i := 0; i < maxRetries; i++ {
		sum += pow
		pow *= f
	}
	first := float64(timeout) / sum

	plan := make([]time.Duration, maxRetries)
	pow = 1.0
	for i := 0; i < maxRetries; i++ {
		plan[i] = time.Duration(first * pow)
		pow *= f
	}
	return plan
}

// FlatRandomIntervals draws a random sub-timeout in [0,timeout] and
// splits it into maxRetries equal steps, so the whole retry sequence
// finishes anywhere between immediately and the full budget.
type FlatRandomIntervals struct{}

func (FlatRandomIntervals) Name() string { return "flat_random_intervals" }

func (FlatRandomIntervals) Plan(timeout time.Duration, maxRetries int) []time.Duration {
	if maxRetries <= 0 {
		return nil
	}
	sub := time.Duration(xrand.Float64() * float64(timeout))
	step := sub / time.Duration(maxRetries)
	plan := make([]time.Duration, maxRetries)
	for i := range plan {
		plan[i] = step
	}
	return plan
}

// NormalRandomIntervals draws each of maxRetries steps independently
// and uniformly from [0,timeout/maxRetries]; summed, the total retry
// time approximates a normal distribution centred at timeout/2.
type NormalRandomIntervals struct{}

func (NormalRandomIntervals) Name() string { return "normal_random_intervals" }

func (NormalRandomIntervals) Plan(timeout time.Duration, maxRetries int) []time.Duration {
	if maxRetries <= 0 {
		return nil
	}
	max := float64(timeout) / float64(maxRetries)
	plan := make([]time.Duration, maxRetries)
	for i := range plan {
		plan[i] = time.Duration(xrand.Float64() * max)
	}
	return plan
}

// DeltaEvenIntervals always retries maxRetries times at timeout/maxRetries
// apart — the worst case for a single caller, but the simplest to reason
// about; every miss lands at the same set of wall-clock offsets.
type DeltaEvenIntervals struct{}

func (DeltaEvenIntervals) Name() string { return "delta_even_intervals" }

func (DeltaEvenIntervals) Plan(timeout time.Duration, maxRetries int) []time.Duration {
	if maxRetries <= 0 {
		return nil
	}
	step := timeout / time.Duration(maxRetries)
	plan := make([]time.Duration, maxRetries)
	for i := range plan {
		plan[i] = step
	}
	return plan
}

// BinomialEvenIntervals attempts each of maxRetries evenly-spaced slots
// independently with probability Factor/maxRetries (Factor clamped to
// [0,maxRetries]), giving a Binomial(maxRetries,p) count of actual
// sleeps.
type BinomialEvenIntervals struct {
	Factor float64
}

func (BinomialEvenIntervals) Name() string { return "binomial_even_intervals" }

func (s BinomialEvenIntervals) Plan(timeout time.Duration, maxRetries int) []time.Duration {
	if maxRetries <= 0 {
		return nil
	}
	factor := s.Factor
	if factor < 0 {
		factor = 0
	}
	if factor > float64(maxRetries) {
		factor = float64(maxRetries)
	}
	p := factor / float64(maxRetries)
	step := timeout / time.Duration(maxRetries)

	var plan []time.Duration
	for i := 0; i < maxRetries; i++ {
		if xrand.Float64() < p {
			plan = append(plan, step)
		}
	}
	return plan
}
