package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCircuitBreaker_ClosedState_PassesThrough(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("svc"))

	var calls int
	err := cb.Execute(context.Background(), func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed state, got %s", cb.State())
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cfg := CircuitBreakerConfig{
		Name:             "svc",
		FailureThreshold: 3,
		Timeout:          1 * time.Minute,
	}
	cb := NewCircuitBreaker(cfg)

	// Fail 3 times to trip the breaker.
	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), func(_ context.Context) error {
			return errors.New("fail")
		})
	}

	if cb.State() != CircuitOpen {
		t.Errorf("expected open state after %d failures, got %s", cfg.FailureThreshold, cb.State())
	}
	if cb.CanAttempt() {
		t.Error("expected CanAttempt to report false while open")
	}

	// Next call should be rejected immediately with a typed error.
	err := cb.Execute(context.Background(), func(_ context.Context) error {
		t.Error("should not be called when circuit is open")
		return nil
	})
	var boe *BreakerOpenError
	if !errors.As(err, &boe) {
		t.Fatalf("expected BreakerOpenError, got %v", err)
	}
	if boe.Service != "svc" {
		t.Errorf("expected service name in error, got %q", boe.Service)
	}
	if boe.RetryAfter <= 0 || boe.RetryAfter > cfg.Timeout {
		t.Errorf("expected RetryAfter in (0, %s], got %s", cfg.Timeout, boe.RetryAfter)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCounter(t *testing.T) {
	cfg := CircuitBreakerConfig{
		Name:             "svc",
		FailureThreshold: 3,
		Timeout:          1 * time.Minute,
	}
	cb := NewCircuitBreaker(cfg)

	// Fail twice (below threshold).
	for i := 0; i < 2; i++ {
		cb.RecordFailure(errors.New("fail"))
	}

	failures, state := cb.ConsecutiveFailures()
	if failures != 2 {
		t.Errorf("expected 2 consecutive failures, got %d", failures)
	}
	if state != CircuitClosed {
		t.Errorf("expected closed state, got %s", state)
	}

	cb.RecordSuccess()

	failures, _ = cb.ConsecutiveFailures()
	if failures != 0 {
		t.Errorf("expected 0 consecutive failures after success, got %d", failures)
	}
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	now := time.Now()
	cfg := CircuitBreakerConfig{
		Name:             "svc",
		FailureThreshold: 2,
		Timeout:          100 * time.Millisecond,
	}
	cb := NewCircuitBreaker(cfg)
	cb.nowFunc = func() time.Time { return now }

	// Trip the breaker.
	for i := 0; i < 2; i++ {
		cb.RecordFailure(errors.New("fail"))
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}
	if cb.CanAttempt() {
		t.Fatal("expected attempt rejected before timeout")
	}

	// Advance past the timeout: the very next check allows a probe.
	now = now.Add(150 * time.Millisecond)
	if cb.State() != CircuitHalfOpen {
		t.Errorf("expected half-open after timeout, got %s", cb.State())
	}
	if !cb.CanAttempt() {
		t.Error("expected probe allowed after timeout")
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	cfg := CircuitBreakerConfig{
		Name:             "svc",
		FailureThreshold: 2,
		SuccessThreshold: 2,
		Timeout:          100 * time.Millisecond,
	}
	cb := NewCircuitBreaker(cfg)
	cb.nowFunc = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		cb.RecordFailure(errors.New("fail"))
	}
	now = now.Add(150 * time.Millisecond)
	if !cb.CanAttempt() {
		t.Fatal("expected half-open probe allowed")
	}

	// A single failure in half-open returns the breaker to open.
	cb.RecordFailure(errors.New("probe fail"))
	if cb.State() != CircuitOpen {
		t.Errorf("expected open after half-open failure, got %s", cb.State())
	}
	if cb.CanAttempt() {
		t.Error("expected attempt rejected after reopen")
	}
}

func TestCircuitBreaker_HalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	now := time.Now()
	cfg := CircuitBreakerConfig{
		Name:             "svc",
		FailureThreshold: 2,
		SuccessThreshold: 2,
		Timeout:          100 * time.Millisecond,
	}
	cb := NewCircuitBreaker(cfg)
	cb.nowFunc = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		cb.RecordFailure(errors.New("fail"))
	}
	now = now.Add(150 * time.Millisecond)
	if !cb.CanAttempt() {
		t.Fatal("expected half-open probe allowed")
	}

	cb.RecordSuccess()
	if cb.State() != CircuitHalfOpen {
		t.Errorf("expected still half-open after 1 of 2 successes, got %s", cb.State())
	}
	cb.RecordSuccess()
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed after success threshold, got %s", cb.State())
	}
}

func TestCircuitBreaker_ExecutePreservesUnderlyingError(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("svc"))
	want := errors.New("upstream boom")

	got := cb.Execute(context.Background(), func(_ context.Context) error {
		return want
	})
	if !errors.Is(got, want) {
		t.Errorf("expected underlying error to pass through, got %v", got)
	}
}

func TestCircuitBreaker_LifetimeCounters(t *testing.T) {
	cfg := CircuitBreakerConfig{Name: "svc", FailureThreshold: 2, Timeout: time.Minute}
	cb := NewCircuitBreaker(cfg)

	cb.RecordSuccess()
	cb.RecordFailure(errors.New("a"))
	cb.RecordFailure(errors.New("b"))

	c := cb.Counters()
	if c.TotalCalls != 3 || c.TotalSuccesses != 1 || c.TotalFailures != 2 {
		t.Errorf("unexpected counters: %+v", c)
	}
	if c.TimesOpened != 1 {
		t.Errorf("expected 1 open transition, got %d", c.TimesOpened)
	}
}

func TestExecuteVal_ReturnsValue(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("svc"))

	v, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 {
		t.Errorf("expected 42, got %d", v)
	}
}

func TestBreakerRegistry_ReusesInstancePerName(t *testing.T) {
	reg := NewBreakerRegistry(nil)

	a := reg.Get("fec")
	b := reg.Get("fec")
	c := reg.Get("sec_edgar")
	if a != b {
		t.Error("expected same breaker instance for same service name")
	}
	if a == c {
		t.Error("expected distinct breakers for distinct services")
	}
}

func TestBreakerRegistry_PerServiceConfig(t *testing.T) {
	reg := NewBreakerRegistry(map[string]CircuitBreakerConfig{
		"fec": ClassConfig("fec", ClassVerifier),
	})

	cb := reg.Get("fec")
	if cb.cfg.SuccessThreshold != 1 {
		t.Errorf("expected verifier-class success threshold 1, got %d", cb.cfg.SuccessThreshold)
	}
	if cb.cfg.Timeout != 120*time.Second {
		t.Errorf("expected 120s timeout, got %s", cb.cfg.Timeout)
	}
}

func TestBreakerRegistry_ConcurrentGet(t *testing.T) {
	reg := NewBreakerRegistry(nil)

	var wg sync.WaitGroup
	results := make([]*CircuitBreaker, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = reg.Get("perplexity")
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent Get returned different instances")
		}
	}
}

func TestBreakerRegistry_States(t *testing.T) {
	reg := NewBreakerRegistry(map[string]CircuitBreakerConfig{
		"flaky": {Name: "flaky", FailureThreshold: 1, Timeout: time.Minute},
	})

	reg.Get("flaky").RecordFailure(errors.New("down"))
	reg.Get("steady").RecordSuccess()

	states := reg.States()
	if states["flaky"] != CircuitOpen {
		t.Errorf("expected flaky open, got %s", states["flaky"])
	}
	if states["steady"] != CircuitClosed {
		t.Errorf("expected steady closed, got %s", states["steady"])
	}
}
