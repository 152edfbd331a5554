package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/prospect-cli/internal/checkpoint"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/resilience"
)

// SkipDependencyFailed is the checkpoint reason when a step is skipped
// because a required step it depends on did not complete.
const SkipDependencyFailed = "dependency_failed"

// ExecutorConfig tunes retry behavior across passes.
type ExecutorConfig struct {
	// MaxRetries is how many extra attempts a step gets after its first
	// transient failure. Default: 2.
	MaxRetries int

	// BaseDelay is the pause before the first retry pass; doubles each
	// pass. Default: 2s.
	BaseDelay time.Duration

	// MaxDelay caps the pause between passes. Default: 30s.
	MaxDelay time.Duration

	// Sink receives step lifecycle events. Optional.
	Sink EventSink
}

func (c ExecutorConfig) withDefaults() ExecutorConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 2
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 2 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Sink == nil {
		c.Sink = nopSink{}
	}
	return c
}

// Executor runs a step plan against the checkpoint store, resuming completed
// work and retrying transient failures in backoff passes.
type Executor struct {
	store    checkpoint.Store
	breakers *resilience.BreakerRegistry
	cfg      ExecutorConfig

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates a step executor.
func NewExecutor(store checkpoint.Store, breakers *resilience.BreakerRegistry, cfg ExecutorConfig) *Executor {
	return &Executor{
		store:    store,
		breakers: breakers,
		cfg:      cfg.withDefaults(),
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ExecuteSteps runs the plan for one subject and returns every step's final
// result. Completed checkpoints from earlier runs are reused without
// re-invoking the step. The returned error covers planning and persistence
// problems only; individual step failures are reported in the results.
func (e *Executor) ExecuteSteps(ctx context.Context, subject model.Subject, steps []StepDefinition) (map[string]model.StepResult, error) {
	ordered, err := orderSteps(steps)
	if err != nil {
		return nil, err
	}
	plan := make(map[string]StepDefinition, len(ordered))
	for _, def := range ordered {
		plan[def.Name] = def
	}

	log := zap.L().With(zap.String("subject_id", subject.ID))

	results := make(map[string]model.StepResult, len(ordered))
	attempts := make(map[string]int, len(ordered))
	var mu sync.Mutex

	if err := e.resume(ctx, subject.ID, ordered, results); err != nil {
		return nil, err
	}

	for pass := 0; ; pass++ {
		if err := e.runPass(ctx, subject, ordered, plan, results, attempts, &mu); err != nil {
			return results, err
		}

		pending := e.pendingRetryable(ordered, results, attempts)
		if len(pending) == 0 || pass >= e.cfg.MaxRetries {
			break
		}
		if ctx.Err() != nil {
			return results, ctx.Err()
		}

		delay := backoff(pass, e.cfg.BaseDelay, e.cfg.MaxDelay)
		log.Info("pipeline: waiting before retry pass",
			zap.Int("pass", pass+1),
			zap.Duration("delay", delay),
			zap.Strings("pending", pending))
		if err := e.sleep(ctx, delay); err != nil {
			return results, err
		}
	}

	// Anything still non-terminal ran out of retries or sits behind an
	// open breaker with no budget left. A step that never got a single
	// attempt because its breaker was already open is skipped, not failed:
	// the service was unavailable, the step itself never misbehaved.
	for _, def := range ordered {
		if res, ok := results[def.Name]; ok && res.Status.Terminal() {
			continue
		}
		if cb := e.breakerFor(def); cb != nil && !cb.CanAttempt() {
			if attempts[def.Name] == 0 {
				const reason = "service circuit open"
				e.persistSkip(ctx, subject.ID, def.Name, reason)
				mu.Lock()
				results[def.Name] = model.StepResult{Status: model.StepSkipped, SkipReason: reason}
				mu.Unlock()
				e.cfg.Sink.OnEvent(Event{Kind: EventStepSkipped, SubjectID: subject.ID, Step: def.Name, Status: model.StepSkipped, Detail: reason, At: time.Now()})
				continue
			}
			e.persistFailure(ctx, subject.ID, def.Name, "service circuit open")
			mu.Lock()
			results[def.Name] = model.StepResult{Status: model.StepFailed, Error: "service circuit open"}
			mu.Unlock()
			e.cfg.Sink.OnEvent(Event{Kind: EventStepFailed, SubjectID: subject.ID, Step: def.Name, Status: model.StepFailed, Detail: "service circuit open", At: time.Now()})
			continue
		}
		const msg = "retries exhausted"
		e.persistFailure(ctx, subject.ID, def.Name, msg)
		mu.Lock()
		results[def.Name] = model.StepResult{Status: model.StepFailed, Error: msg}
		mu.Unlock()
		e.cfg.Sink.OnEvent(Event{Kind: EventStepFailed, SubjectID: subject.ID, Step: def.Name, Status: model.StepFailed, Detail: msg, At: time.Now()})
	}

	return results, nil
}

// resume loads completed checkpoints for steps in the plan.
func (e *Executor) resume(ctx context.Context, subjectID string, ordered []StepDefinition, results map[string]model.StepResult) error {
	inPlan := make(map[string]bool, len(ordered))
	for _, def := range ordered {
		inPlan[def.Name] = true
	}

	records, err := e.store.GetAllCheckpoints(ctx, subjectID)
	if err != nil {
		return eris.Wrap(err, "pipeline: load checkpoints")
	}
	for _, rec := range records {
		if !inPlan[rec.StepName] || rec.Status != model.StepCompleted {
			continue
		}
		var res model.StepResult
		if len(rec.Result) > 0 {
			if err := json.Unmarshal(rec.Result, &res); err != nil {
				zap.L().Warn("pipeline: unreadable checkpoint payload, step will re-run",
					zap.String("subject_id", subjectID),
					zap.String("step", rec.StepName),
					zap.Error(err))
				continue
			}
		}
		res.Status = model.StepCompleted
		results[rec.StepName] = res
		e.cfg.Sink.OnEvent(Event{Kind: EventResumed, SubjectID: subjectID, Step: rec.StepName, Status: model.StepCompleted, At: time.Now()})
	}
	return nil
}

// runPass executes waves of ready steps until nothing new can run. Ready
// means: not terminal, all dependencies terminal, breaker willing, retry
// budget left.
func (e *Executor) runPass(ctx context.Context, subject model.Subject, ordered []StepDefinition, plan map[string]StepDefinition, results map[string]model.StepResult, attempts map[string]int, mu *sync.Mutex) error {
	for {
		var wave []StepDefinition

		mu.Lock()
		for _, def := range ordered {
			if res, ok := results[def.Name]; ok && res.Status.Terminal() {
				continue
			}
			state, blocked := e.dependencyState(def, plan, results)
			if blocked {
				results[def.Name] = model.StepResult{Status: model.StepSkipped, SkipReason: SkipDependencyFailed}
				mu.Unlock()
				e.persistSkip(ctx, subject.ID, def.Name, SkipDependencyFailed)
				e.cfg.Sink.OnEvent(Event{Kind: EventStepSkipped, SubjectID: subject.ID, Step: def.Name, Status: model.StepSkipped, Detail: SkipDependencyFailed, At: time.Now()})
				mu.Lock()
				continue
			}
			if !state {
				continue // dependencies still pending
			}
			if attempts[def.Name] > e.cfg.MaxRetries {
				continue
			}
			if cb := e.breakerFor(def); cb != nil && !cb.CanAttempt() {
				continue
			}
			wave = append(wave, def)
		}
		mu.Unlock()

		if len(wave) == 0 {
			return nil
		}

		g, gCtx := errgroup.WithContext(ctx)
		for _, def := range wave {
			g.Go(func() error {
				e.runStep(gCtx, subject, def, results, attempts, mu)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// dependencyState reports (ready, blocked). blocked means a required
// dependency terminally failed or was skipped. An optional dependency that
// ends skipped or failed does not block: its terminal result passes through
// to the step, which decides what to do with the gap. false/false means
// some dependency has not finished yet.
func (e *Executor) dependencyState(def StepDefinition, plan map[string]StepDefinition, results map[string]model.StepResult) (ready bool, blocked bool) {
	for _, dep := range def.DependsOn {
		res, ok := results[dep]
		if !ok || !res.Status.Terminal() {
			return false, false
		}
		if res.Status != model.StepCompleted && plan[dep].Required {
			return false, true
		}
	}
	return true, false
}

func (e *Executor) breakerFor(def StepDefinition) *resilience.CircuitBreaker {
	if def.Service == "" || e.breakers == nil {
		return nil
	}
	return e.breakers.Get(def.Service)
}

func (e *Executor) runStep(ctx context.Context, subject model.Subject, def StepDefinition, results map[string]model.StepResult, attempts map[string]int, mu *sync.Mutex) {
	log := zap.L().With(zap.String("subject_id", subject.ID), zap.String("step", def.Name))

	if def.Run == nil {
		const reason = "not configured"
		e.persistSkip(ctx, subject.ID, def.Name, reason)
		mu.Lock()
		results[def.Name] = model.StepResult{Status: model.StepSkipped, SkipReason: reason}
		mu.Unlock()
		e.cfg.Sink.OnEvent(Event{Kind: EventStepSkipped, SubjectID: subject.ID, Step: def.Name, Status: model.StepSkipped, Detail: reason, At: time.Now()})
		return
	}

	mu.Lock()
	deps := make(map[string]model.StepResult, len(def.DependsOn))
	for _, dep := range def.DependsOn {
		deps[dep] = results[dep]
	}
	attempts[def.Name]++
	attempt := attempts[def.Name]
	mu.Unlock()

	e.cfg.Sink.OnEvent(Event{Kind: EventStepStarted, SubjectID: subject.ID, Step: def.Name, At: time.Now()})
	if err := e.store.MarkProcessing(ctx, subject.ID, def.Name); err != nil {
		log.Warn("pipeline: mark processing failed", zap.Error(err))
	}

	stepCtx := ctx
	cancel := func() {}
	if def.Timeout > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, def.Timeout)
	}
	start := time.Now()
	res, err := e.execute(stepCtx, def, subject, deps)
	duration := time.Since(start)
	cancel()

	if err != nil {
		if retryable(err) && attempt <= e.cfg.MaxRetries {
			log.Warn("pipeline: step failed, will retry",
				zap.Int("attempt", attempt),
				zap.Error(err))
			e.cfg.Sink.OnEvent(Event{Kind: EventStepRetrying, SubjectID: subject.ID, Step: def.Name, Detail: err.Error(), At: time.Now()})
			return
		}
		log.Error("pipeline: step failed", zap.Int("attempt", attempt), zap.Error(err))
		e.persistFailure(ctx, subject.ID, def.Name, err.Error())
		mu.Lock()
		results[def.Name] = model.StepResult{Status: model.StepFailed, Error: err.Error()}
		mu.Unlock()
		e.cfg.Sink.OnEvent(Event{Kind: EventStepFailed, SubjectID: subject.ID, Step: def.Name, Status: model.StepFailed, Detail: err.Error(), At: time.Now()})
		return
	}

	if res == nil {
		res = &model.StepResult{}
	}

	if res.Status == model.StepSkipped {
		e.persistSkip(ctx, subject.ID, def.Name, res.SkipReason)
		mu.Lock()
		results[def.Name] = *res
		mu.Unlock()
		e.cfg.Sink.OnEvent(Event{Kind: EventStepSkipped, SubjectID: subject.ID, Step: def.Name, Status: model.StepSkipped, Detail: res.SkipReason, At: time.Now()})
		return
	}

	res.Status = model.StepCompleted
	payload, merr := json.Marshal(res)
	if merr != nil {
		log.Warn("pipeline: encode step result", zap.Error(merr))
		payload = nil
	}
	if err := e.store.SaveResult(ctx, subject.ID, def.Name, payload, res.TokensUsed, duration.Milliseconds()); err != nil {
		log.Warn("pipeline: save checkpoint failed", zap.Error(err))
	}
	mu.Lock()
	results[def.Name] = *res
	mu.Unlock()
	log.Info("pipeline: step complete",
		zap.Int64("duration_ms", duration.Milliseconds()),
		zap.Int("tokens", res.TokensUsed))
	e.cfg.Sink.OnEvent(Event{Kind: EventStepCompleted, SubjectID: subject.ID, Step: def.Name, Status: model.StepCompleted, At: time.Now()})
}

// execute runs the step through its service breaker when one is declared.
func (e *Executor) execute(ctx context.Context, def StepDefinition, subject model.Subject, deps map[string]model.StepResult) (*model.StepResult, error) {
	cb := e.breakerFor(def)
	if cb == nil {
		return def.Run(ctx, subject, deps)
	}
	return resilience.ExecuteVal(ctx, cb, func(ctx context.Context) (*model.StepResult, error) {
		return def.Run(ctx, subject, deps)
	})
}

// pendingRetryable lists non-terminal steps that still have retry budget and
// are not waiting on a permanently failed dependency.
func (e *Executor) pendingRetryable(ordered []StepDefinition, results map[string]model.StepResult, attempts map[string]int) []string {
	var pending []string
	for _, def := range ordered {
		if res, ok := results[def.Name]; ok && res.Status.Terminal() {
			continue
		}
		if attempts[def.Name] > e.cfg.MaxRetries {
			continue
		}
		pending = append(pending, def.Name)
	}
	return pending
}

func (e *Executor) persistFailure(ctx context.Context, subjectID, step, msg string) {
	if err := e.store.MarkFailed(ctx, subjectID, step, msg); err != nil {
		zap.L().Warn("pipeline: mark failed", zap.String("step", step), zap.Error(err))
	}
}

func (e *Executor) persistSkip(ctx context.Context, subjectID, step, reason string) {
	if err := e.store.MarkSkipped(ctx, subjectID, step, reason); err != nil {
		zap.L().Warn("pipeline: mark skipped", zap.String("step", step), zap.Error(err))
	}
}

// retryable mirrors the retry helper's default predicate: breaker-open and
// transient errors get another pass, and a per-step timeout counts as
// transient. A parent-context cancellation does not.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return resilience.IsBreakerOpen(err) || resilience.IsTransient(err) || errors.Is(err, context.DeadlineExceeded)
}

func backoff(pass int, base, max time.Duration) time.Duration {
	d := base << pass
	if d > max || d <= 0 {
		return max
	}
	return d
}
