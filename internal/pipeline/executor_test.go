package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sells-group/prospect-cli/internal/checkpoint"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/resilience"
)

func newTestExecutor(store checkpoint.Store, cfg ExecutorConfig) *Executor {
	e := NewExecutor(store, resilience.NewBreakerRegistry(nil), cfg)
	e.sleep = func(context.Context, time.Duration) error { return nil }
	return e
}

func okStep(data map[string]any) StepFunc {
	return func(context.Context, model.Subject, map[string]model.StepResult) (*model.StepResult, error) {
		return &model.StepResult{Data: data}, nil
	}
}

func TestOrderStepsDeterministic(t *testing.T) {
	steps := []StepDefinition{
		{Name: "synthesis", DependsOn: []string{"fec", "sec"}},
		{Name: "sec"},
		{Name: "fec"},
	}
	ordered, err := orderSteps(steps)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"fec", "sec", "synthesis"}
	for i, def := range ordered {
		if def.Name != want[i] {
			t.Errorf("ordered[%d] = %s, want %s", i, def.Name, want[i])
		}
	}
}

func TestOrderStepsRejectsCycles(t *testing.T) {
	_, err := orderSteps([]StepDefinition{
		{Name: "a", DependsOn: []string{"b"}},
		{Name: "b", DependsOn: []string{"a"}},
	})
	if err == nil {
		t.Fatal("expected cycle error")
	}

	_, err = orderSteps([]StepDefinition{{Name: "a", DependsOn: []string{"ghost"}}})
	if err == nil {
		t.Fatal("expected unknown-dependency error")
	}
}

func TestExecuteStepsHappyPath(t *testing.T) {
	store := checkpoint.NewMemory()
	e := newTestExecutor(store, ExecutorConfig{})
	subject := model.Subject{ID: "s1", Name: "Jane Doe"}

	results, err := e.ExecuteSteps(context.Background(), subject, []StepDefinition{
		{Name: "fec", Required: true, Run: okStep(map[string]any{"total": float64(100)})},
		{Name: "synthesis", DependsOn: []string{"fec"}, Required: true,
			Run: func(_ context.Context, _ model.Subject, deps map[string]model.StepResult) (*model.StepResult, error) {
				if deps["fec"].Data["total"] != float64(100) {
					return nil, errors.New("dependency data missing")
				}
				return &model.StepResult{Data: map[string]any{"ok": true}}, nil
			}},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"fec", "synthesis"} {
		if results[name].Status != model.StepCompleted {
			t.Errorf("%s status = %s, want completed", name, results[name].Status)
		}
	}

	done, err := store.HasCompleted(context.Background(), "s1", "synthesis")
	if err != nil || !done {
		t.Errorf("synthesis checkpoint not persisted: %v %v", done, err)
	}
}

func TestExecuteStepsResumesFromCheckpoint(t *testing.T) {
	store := checkpoint.NewMemory()
	ctx := context.Background()
	// A previous run completed "fec".
	if err := store.SaveResult(ctx, "s1", "fec", []byte(`{"status":"completed","data":{"total":50000}}`), 0, 10); err != nil {
		t.Fatal(err)
	}

	var fecCalls, synthCalls int32
	e := newTestExecutor(store, ExecutorConfig{})

	results, err := e.ExecuteSteps(ctx, model.Subject{ID: "s1"}, []StepDefinition{
		{Name: "fec", Required: true, Run: func(context.Context, model.Subject, map[string]model.StepResult) (*model.StepResult, error) {
			atomic.AddInt32(&fecCalls, 1)
			return &model.StepResult{}, nil
		}},
		{Name: "synth", DependsOn: []string{"fec"}, Required: true,
			Run: func(_ context.Context, _ model.Subject, deps map[string]model.StepResult) (*model.StepResult, error) {
				atomic.AddInt32(&synthCalls, 1)
				if deps["fec"].Data["total"] != float64(50000) {
					return nil, errors.New("resumed data missing")
				}
				return &model.StepResult{}, nil
			}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if fecCalls != 0 {
		t.Errorf("fec ran %d times, want 0 (resumed from checkpoint)", fecCalls)
	}
	if synthCalls != 1 {
		t.Errorf("synth ran %d times, want 1", synthCalls)
	}
	if results["synth"].Status != model.StepCompleted {
		t.Errorf("synth status = %s", results["synth"].Status)
	}
}

func TestExecuteStepsDependencyFailureSkips(t *testing.T) {
	store := checkpoint.NewMemory()
	e := newTestExecutor(store, ExecutorConfig{MaxRetries: 1})

	results, err := e.ExecuteSteps(context.Background(), model.Subject{ID: "s1"}, []StepDefinition{
		{Name: "broken", Required: true, Run: func(context.Context, model.Subject, map[string]model.StepResult) (*model.StepResult, error) {
			return nil, errors.New("schema mismatch") // permanent
		}},
		{Name: "downstream", DependsOn: []string{"broken"}, Run: okStep(nil)},
		{Name: "independent", Run: okStep(nil)},
	})
	if err != nil {
		t.Fatal(err)
	}

	if results["broken"].Status != model.StepFailed {
		t.Errorf("broken status = %s, want failed", results["broken"].Status)
	}
	ds := results["downstream"]
	if ds.Status != model.StepSkipped || ds.SkipReason != SkipDependencyFailed {
		t.Errorf("downstream = %+v, want skipped/dependency_failed", ds)
	}
	if results["independent"].Status != model.StepCompleted {
		t.Errorf("independent status = %s, want completed", results["independent"].Status)
	}
}

func TestExecuteStepsRetriesTransientFailures(t *testing.T) {
	store := checkpoint.NewMemory()
	e := newTestExecutor(store, ExecutorConfig{MaxRetries: 2})

	var calls int32
	results, err := e.ExecuteSteps(context.Background(), model.Subject{ID: "s1"}, []StepDefinition{
		{Name: "flaky", Required: true, Run: func(context.Context, model.Subject, map[string]model.StepResult) (*model.StepResult, error) {
			if atomic.AddInt32(&calls, 1) < 3 {
				return nil, resilience.NewTransientError(errors.New("503"), 503)
			}
			return &model.StepResult{}, nil
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if results["flaky"].Status != model.StepCompleted {
		t.Errorf("status = %s, want completed after retries", results["flaky"].Status)
	}
}

func TestExecuteStepsExhaustsRetries(t *testing.T) {
	store := checkpoint.NewMemory()
	e := newTestExecutor(store, ExecutorConfig{MaxRetries: 1})

	var calls int32
	results, err := e.ExecuteSteps(context.Background(), model.Subject{ID: "s1"}, []StepDefinition{
		{Name: "down", Required: true, Run: func(context.Context, model.Subject, map[string]model.StepResult) (*model.StepResult, error) {
			atomic.AddInt32(&calls, 1)
			return nil, resilience.NewTransientError(errors.New("timeout"), 0)
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want initial attempt plus one retry", calls)
	}
	if results["down"].Status != model.StepFailed {
		t.Errorf("status = %s, want failed", results["down"].Status)
	}
}

func TestExecuteStepsUnconfiguredStepSkipped(t *testing.T) {
	store := checkpoint.NewMemory()
	e := newTestExecutor(store, ExecutorConfig{})

	results, err := e.ExecuteSteps(context.Background(), model.Subject{ID: "s1"}, []StepDefinition{
		{Name: "attom"}, // no Run: credentials absent
	})
	if err != nil {
		t.Fatal(err)
	}
	res := results["attom"]
	if res.Status != model.StepSkipped || res.SkipReason != "not configured" {
		t.Errorf("result = %+v", res)
	}
}

func TestExecuteStepsPerStepTimeout(t *testing.T) {
	store := checkpoint.NewMemory()
	e := newTestExecutor(store, ExecutorConfig{MaxRetries: 1})

	var calls int32
	results, err := e.ExecuteSteps(context.Background(), model.Subject{ID: "s1"}, []StepDefinition{
		{Name: "slow", Timeout: 10 * time.Millisecond,
			Run: func(ctx context.Context, _ model.Subject, _ map[string]model.StepResult) (*model.StepResult, error) {
				atomic.AddInt32(&calls, 1)
				<-ctx.Done()
				return nil, ctx.Err()
			}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if results["slow"].Status != model.StepFailed {
		t.Errorf("status = %s, want failed after timing out", results["slow"].Status)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want timeout to be retried once", calls)
	}
}

func TestExecuteStepsEventsEmitted(t *testing.T) {
	store := checkpoint.NewMemory()
	sink := NewChannelSink(16)
	e := newTestExecutor(store, ExecutorConfig{Sink: sink})

	_, err := e.ExecuteSteps(context.Background(), model.Subject{ID: "s1"}, []StepDefinition{
		{Name: "fec", Run: okStep(nil)},
	})
	if err != nil {
		t.Fatal(err)
	}

	kinds := make(map[EventKind]bool)
	for {
		select {
		case ev := <-sink.C:
			kinds[ev.Kind] = true
		default:
			if !kinds[EventStepStarted] || !kinds[EventStepCompleted] {
				t.Errorf("kinds = %v, want started and completed", kinds)
			}
			return
		}
	}
}

func TestExecuteStepsOptionalSkipDoesNotBlockDependent(t *testing.T) {
	store := checkpoint.NewMemory()
	e := newTestExecutor(store, ExecutorConfig{MaxRetries: 1})

	var sawSkippedDep bool
	results, err := e.ExecuteSteps(context.Background(), model.Subject{ID: "s1"}, []StepDefinition{
		{Name: "attom"}, // optional, no Run: credentials absent
		{Name: "synthesis", DependsOn: []string{"attom"}, Required: true,
			Run: func(_ context.Context, _ model.Subject, deps map[string]model.StepResult) (*model.StepResult, error) {
				sawSkippedDep = deps["attom"].Status == model.StepSkipped
				return &model.StepResult{Data: map[string]any{"summary": "partial"}}, nil
			}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if results["attom"].Status != model.StepSkipped {
		t.Errorf("attom status = %s, want skipped", results["attom"].Status)
	}
	if results["synthesis"].Status != model.StepCompleted {
		t.Errorf("synthesis = %+v, want completed despite the skipped optional source", results["synthesis"])
	}
	if !sawSkippedDep {
		t.Error("synthesis did not receive the skipped dependency result")
	}
}

func TestExecuteStepsOptionalFailureDoesNotBlockDependent(t *testing.T) {
	store := checkpoint.NewMemory()
	e := newTestExecutor(store, ExecutorConfig{MaxRetries: 1})

	results, err := e.ExecuteSteps(context.Background(), model.Subject{ID: "s1"}, []StepDefinition{
		{Name: "fec", Run: func(context.Context, model.Subject, map[string]model.StepResult) (*model.StepResult, error) {
			return nil, errors.New("bad request") // permanent, optional
		}},
		{Name: "synthesis", DependsOn: []string{"fec"}, Required: true, Run: okStep(nil)},
	})
	if err != nil {
		t.Fatal(err)
	}

	if results["fec"].Status != model.StepFailed {
		t.Errorf("fec status = %s, want failed", results["fec"].Status)
	}
	if results["synthesis"].Status != model.StepCompleted {
		t.Errorf("synthesis = %+v, want completed despite the failed optional source", results["synthesis"])
	}
}

func TestExecuteStepsBreakerOpenWithoutAttemptSkips(t *testing.T) {
	store := checkpoint.NewMemory()
	breakers := resilience.NewBreakerRegistry(map[string]resilience.CircuitBreakerConfig{
		"flaky_api": {Name: "flaky_api", FailureThreshold: 1, Timeout: time.Hour},
	})
	breakers.Get("flaky_api").RecordFailure(errors.New("boom")) // trips the circuit

	e := NewExecutor(store, breakers, ExecutorConfig{MaxRetries: 1})
	e.sleep = func(context.Context, time.Duration) error { return nil }

	var calls int32
	results, err := e.ExecuteSteps(context.Background(), model.Subject{ID: "s1"}, []StepDefinition{
		{Name: "guarded", Service: "flaky_api",
			Run: func(context.Context, model.Subject, map[string]model.StepResult) (*model.StepResult, error) {
				atomic.AddInt32(&calls, 1)
				return &model.StepResult{}, nil
			}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if calls != 0 {
		t.Errorf("calls = %d, want 0: breaker was open the whole run", calls)
	}
	res := results["guarded"]
	if res.Status != model.StepSkipped || res.SkipReason != "service circuit open" {
		t.Errorf("result = %+v, want skipped with circuit-open reason", res)
	}
}
