package retry

import (
	"testing"
	"time"
)

func sumPlan(plan []time.Duration) time.Duration {
	var total time.Duration
	for _, d := range plan {
		total += d
	}
	return total
}

func TestNoRetryPlansNothing(t *testing.T) {
	if plan := (NoRetry{}).Plan(time.Second, 4); len(plan) != 0 {
		t.Fatalf("expected empty plan, got %v", plan)
	}
}

func TestDeltaEvenIntervalsAlwaysFullCount(t *testing.T) {
	plan := (DeltaEvenIntervals{}).Plan(100*time.Millisecond, 4)
	if len(plan) != 4 {
		t.Fatalf("expected 4 steps, got %d", len(plan))
	}
	for _, d := range plan {
		if d != 25*time.Millisecond {
			t.Fatalf("expected 25ms steps, got %v", d)
		}
	}
}

func TestFlatEvenIntervalsNeverExceedsMax(t *testing.T) {
	for i := 0; i < 50; i++ {
		plan := (FlatEvenIntervals{}).Plan(100*time.Millisecond, 4)
		if len(plan) > 4 {
			t.Fatalf("plan exceeded max retries: %d", len(plan))
		}
	}
}

func TestFlatGeometricIntervalsSumsNearTimeout(t *testing.T) {
	timeout := 100 * time.Millisecond
	plan := (FlatGeometricIntervals{Factor: 2}).Plan(timeout, 4)
	if len(plan) != 4 {
		t.Fatalf("expected 4 steps, got %d", len(plan))
	}
	total := sumPlan(plan)
	if total > timeout+time.Millisecond {
		t.Fatalf("geometric plan sums above timeout: %v > %v", total, timeout)
	}
	for i := 1; i < len(plan); i++ {
		if plan[i] < plan[i-1] {
			t.Fatalf("expected non-decreasing intervals, got %v", plan)
		}
	}
}

func TestFlatGeometricIntervalsDefaultsFactor(t *testing.T) {
	plan := (FlatGeometricIntervals{}).Plan(100*time.Millisecond, 4)
	if len(plan) != 4 {
		t.Fatalf("expected 4 steps, got %d", len(plan))
	}
}

func TestFlatRandomIntervalsWithinSubBudget(t *testing.T) {
	timeout := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		plan := (FlatRandomIntervals{}).Plan(timeout, 4)
		if sumPlan(plan) > timeout {
			t.Fatalf("flat random plan exceeded timeout: %v", sumPlan(plan))
		}
	}
}

func TestNormalRandomIntervalsBoundedPerStep(t *testing.T) {
	timeout := 100 * time.Millisecond
	maxStep := timeout / 4
	for i := 0; i < 50; i++ {
		plan := (NormalRandomIntervals{}).Plan(timeout, 4)
		for _, d := range plan {
			if d > maxStep {
				t.Fatalf("step %v exceeds max %v", d, maxStep)
			}
		}
	}
}

func TestBinomialEvenIntervalsClampsFactor(t *testing.T) {
	plan := (BinomialEvenIntervals{Factor: 999}).Plan(100*time.Millisecond, 4)
	if len(plan) > 4 {
		t.Fatalf("expected at most 4 steps even with oversized factor, got %d", len(plan))
	}
}

func TestBinomialEvenIntervalsZeroFactorNeverRetries(t *testing.T) {
	for i := 0; i < 20; i++ {
		plan := (BinomialEvenIntervals{Factor: 0}).Plan(100*time.Millisecond, 4)
		if len(plan) != 0 {
			t.Fatalf("expected zero retries with factor=0, got %d", len(plan))
		}
	}
}

func TestZeroMaxRetriesEveryStrategyPlansNothing(t *testing.T) {
	strategies := []Strategy{
		NoRetry{}, FlatEvenIntervals{}, FlatGeometricIntervals{Factor: 2},
		FlatRandomIntervals{}, NormalRandomIntervals{}, DeltaEvenIntervals{},
		BinomialEvenIntervals{Factor: 1},
	}
	for _, s := range strategies {
		if plan := s.Plan(time.Second, 0); len(plan) != 0 {
			t.Fatalf("%s: expected empty plan for maxRetries=0, got %v", s.Name(), plan)
		}
	}
}
