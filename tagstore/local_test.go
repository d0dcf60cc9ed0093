package tagstore

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestLocalCreateIsAtomicPerKey(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(Options{}, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	got, err := s.GetOrCreate(ctx, []string{"A", "B"})
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if len(got["A"]) != 8 || len(got["B"]) != 8 {
		t.Fatalf("expected 8-byte tokens, got %v", got)
	}

	again, err := s.GetOrCreate(ctx, []string{"A"})
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if !bytes.Equal(again["A"], got["A"]) {
		t.Fatalf("expected stable token across reads, got %x vs %x", again["A"], got["A"])
	}
}

func TestLocalDeleteThenCreateProducesDifferentToken(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(Options{}, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	before, _ := s.GetOrCreate(ctx, []string{"A"})
	if err := s.Delete(ctx, []string{"A"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	after, _ := s.GetOrCreate(ctx, []string{"A"})

	if bytes.Equal(before["A"], after["A"]) {
		t.Fatalf("expected different token after delete+recreate")
	}
}

func TestLocalUnknownTagOmittedNotZeroed(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(Options{}, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	got, err := s.GetOrCreate(ctx, []string{"A"})
	if err != nil || len(got) != 1 {
		t.Fatalf("expected exactly one tag returned, got %v err=%v", got, err)
	}
}

func TestLocalExpiredEntryTreatedAsMissing(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(Options{TagsLifetime: 20 * time.Millisecond}, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	first, _ := s.GetOrCreate(ctx, []string{"A"})
	time.Sleep(40 * time.Millisecond)
	second, _ := s.GetOrCreate(ctx, []string{"A"})

	if bytes.Equal(first["A"], second["A"]) {
		t.Fatalf("expected lazily-expired tag to get a new token")
	}
}

func TestLocalSweepPrunesExpired(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(Options{TagsLifetime: 15 * time.Millisecond}, 10*time.Millisecond)
	t.Cleanup(func() { _ = s.Close(ctx) })

	_, _ = s.GetOrCreate(ctx, []string{"A"})
	time.Sleep(60 * time.Millisecond)

	s.mu.Lock()
	_, exists := s.m["A"]
	s.mu.Unlock()
	if exists {
		t.Fatalf("expected sweep to prune expired entry")
	}
}
