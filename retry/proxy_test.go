package retry

import (
	"context"
	"testing"
	"time"

	"github.com/unkn0wn-root/tagcache/pool/memory"
)

func TestProxyGetRetriesUntilPopulated(t *testing.T) {
	p := memory.New()
	proxy := NewProxy(p, Config{
		Strategy:   StrategyFlatEvenIntervals,
		Timeout:    100 * time.Millisecond,
		MaxRetries: 4,
	}, nil)

	go func() {
		time.Sleep(60 * time.Millisecond)
		_, _ = p.Set(context.Background(), "k", []byte("v"), 1, 0)
	}()

	start := time.Now()
	v, ok, err := proxy.Get(context.Background(), "k")
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed > 150*time.Millisecond {
		t.Fatalf("retry budget overrun: took %v", elapsed)
	}
	if ok && string(v) != "v" {
		t.Fatalf("unexpected value %q", v)
	}
}

func TestProxyGetImmediateHitNeverSleeps(t *testing.T) {
	p := memory.New()
	_, _ = p.Set(context.Background(), "k", []byte("v"), 1, 0)

	proxy := NewProxy(p, Config{Strategy: StrategyDeltaEvenIntervals, Timeout: time.Second, MaxRetries: 4}, nil)

	start := time.Now()
	v, ok, err := proxy.Get(context.Background(), "k")
	elapsed := time.Since(start)

	if err != nil || !ok {
		t.Fatalf("expected immediate hit, got ok=%v err=%v", ok, err)
	}
	if string(v) != "v" {
		t.Fatalf("unexpected value %q", v)
	}
	if elapsed > 10*time.Millisecond {
		t.Fatalf("expected no sleep on immediate hit, took %v", elapsed)
	}
}

func TestProxyGetPermanentMissRespectsTimeout(t *testing.T) {
	p := memory.New()
	proxy := NewProxy(p, Config{
		Strategy:   StrategyDeltaEvenIntervals,
		Timeout:    60 * time.Millisecond,
		MaxRetries: 3,
	}, nil)

	start := time.Now()
	_, ok, err := proxy.Get(context.Background(), "missing")
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected a miss for a key never set")
	}
	if elapsed > 120*time.Millisecond {
		t.Fatalf("retry budget overrun: took %v", elapsed)
	}
}

func TestProxyForwardsOtherMethodsUnmodified(t *testing.T) {
	p := memory.New()
	proxy := NewProxy(p, Config{}, nil)

	ok, err := proxy.Set(context.Background(), "k", []byte("v"), 1, 0)
	if err != nil || !ok {
		t.Fatalf("Set forwarding failed: ok=%v err=%v", ok, err)
	}

	multi, err := proxy.GetMulti(context.Background(), []string{"k"})
	if err != nil || string(multi["k"]) != "v" {
		t.Fatalf("GetMulti forwarding failed: %v %v", multi, err)
	}
}

func TestAdjustIntervalAbortsPastBudget(t *testing.T) {
	start := time.Now().Add(-200 * time.Millisecond)
	_, abort := adjustInterval(10*time.Millisecond, start, 100*time.Millisecond, 0)
	if !abort {
		t.Fatal("expected abort once elapsed exceeds timeout")
	}
}

func TestAdjustIntervalShrinksToRemainingBudget(t *testing.T) {
	start := time.Now().Add(-90 * time.Millisecond)
	adjusted, abort := adjustInterval(50*time.Millisecond, start, 100*time.Millisecond, 0)
	if abort {
		t.Fatal("did not expect abort")
	}
	if adjusted > 10*time.Millisecond {
		t.Fatalf("expected interval shrunk to ~remaining budget, got %v", adjusted)
	}
}
