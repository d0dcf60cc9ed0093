package tagmemo

import (
	"testing"
	"time"
)

func TestOneShotConsumedOnTake(t *testing.T) {
	m := New(0)
	m.Store(map[string][]byte{"A": []byte("v1")})
	v, ok := m.Take()
	if !ok || string(v["A"]) != "v1" {
		t.Fatalf("expected hit, got ok=%v v=%v", ok, v)
	}
	if _, ok := m.Take(); ok {
		t.Fatalf("expected memo to be consumed after first Take")
	}
}

func TestTTLExpiry(t *testing.T) {
	m := New(20 * time.Millisecond)
	m.Store(map[string][]byte{"A": []byte("v1")})
	if _, ok := m.Take(); !ok {
		t.Fatalf("expected immediate hit")
	}
	time.Sleep(30 * time.Millisecond)
	if _, ok := m.Take(); ok {
		t.Fatalf("expected expiry after ttl elapsed")
	}
}

func TestClear(t *testing.T) {
	m := New(time.Hour)
	m.Store(map[string][]byte{"A": []byte("v1")})
	m.Clear()
	if _, ok := m.Take(); ok {
		t.Fatalf("expected empty memo after Clear")
	}
}
