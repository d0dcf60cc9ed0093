package retry

import (
	"testing"
	"time"
)

func TestConfigResolveDefaults(t *testing.T) {
	var reasons []string
	cfg := Config{}
	s, timeout, maxRetries := cfg.resolve(func(r string) { reasons = append(reasons, r) })
	if len(reasons) != 0 {
		t.Fatalf("unexpected invalid reasons: %v", reasons)
	}
	if s.Name() != "flat_geometric_intervals" {
		t.Fatalf("expected default strategy flat_geometric_intervals, got %s", s.Name())
	}
	if timeout != 5*time.Second {
		t.Fatalf("expected default timeout 5s, got %v", timeout)
	}
	if maxRetries != 4 {
		t.Fatalf("expected default max retries 4, got %d", maxRetries)
	}
}

func TestConfigResolveInvalidTimeoutDegradesToNoRetry(t *testing.T) {
	var reasons []string
	cfg := Config{Timeout: time.Microsecond}
	s, _, _ := cfg.resolve(func(r string) { reasons = append(reasons, r) })
	if s.Name() != "no_retry" {
		t.Fatalf("expected degrade to no_retry, got %s", s.Name())
	}
	if len(reasons) == 0 {
		t.Fatal("expected an invalid-config reason to be reported")
	}
}

func TestConfigResolveNegativeMaxRetriesDegrades(t *testing.T) {
	var reasons []string
	cfg := Config{MaxRetries: -1}
	s, _, _ := cfg.resolve(func(r string) { reasons = append(reasons, r) })
	if s.Name() != "no_retry" {
		t.Fatalf("expected degrade to no_retry, got %s", s.Name())
	}
	if len(reasons) == 0 {
		t.Fatal("expected an invalid-config reason to be reported")
	}
}

func TestConfigResolveBinomialFactorOutOfRangeDegrades(t *testing.T) {
	var reasons []string
	cfg := Config{Strategy: StrategyBinomialEvenIntervals, Factor: 99, MaxRetries: 4}
	s, _, _ := cfg.resolve(func(r string) { reasons = append(reasons, r) })
	if s.Name() != "no_retry" {
		t.Fatalf("expected degrade to no_retry, got %s", s.Name())
	}
	if len(reasons) == 0 {
		t.Fatal("expected an invalid-config reason to be reported")
	}
}

func TestConfigResolveUnknownStrategyDegrades(t *testing.T) {
	var reasons []string
	cfg := Config{Strategy: "bogus"}
	s, _, _ := cfg.resolve(func(r string) { reasons = append(reasons, r) })
	if s.Name() != "no_retry" {
		t.Fatalf("expected degrade to no_retry, got %s", s.Name())
	}
	if len(reasons) == 0 {
		t.Fatal("expected an invalid-config reason to be reported")
	}
}

func TestConfigResolveExplicitStrategies(t *testing.T) {
	cases := []struct {
		strategy StrategyName
		want     string
	}{
		{StrategyNoRetry, "no_retry"},
		{StrategyFlatEvenIntervals, "flat_even_intervals"},
		{StrategyFlatRandomIntervals, "flat_random_intervals"},
		{StrategyNormalRandomIntervals, "normal_random_intervals"},
		{StrategyDeltaEvenIntervals, "delta_even_intervals"},
	}
	for _, c := range cases {
		cfg := Config{Strategy: c.strategy, MaxRetries: 4}
		s, _, _ := cfg.resolve(func(string) { t.Fatalf("unexpected invalid config for %s", c.strategy) })
		if s.Name() != c.want {
			t.Fatalf("%s: got %s, want %s", c.strategy, s.Name(), c.want)
		}
	}
}
