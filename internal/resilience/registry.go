package resilience

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// ServiceClass groups services by how tolerant their breaker should be.
type ServiceClass int

const (
	// ClassPrimary is the main research service: lenient, since it is the
	// backbone of every run (5 failures, 60s cool-down).
	ClassPrimary ServiceClass = iota
	// ClassSecondary is an optional search source: stricter (3 failures, 45s).
	ClassSecondary
	// ClassVerifier is an authoritative verification API: very tolerant of
	// outages, quick to close again (5 failures, 120s, 1 success to close).
	ClassVerifier
)

// ClassConfig returns the breaker config for a service of the given class.
func ClassConfig(name string, class ServiceClass) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig(name)
	switch class {
	case ClassPrimary:
		cfg.FailureThreshold = 5
		cfg.Timeout = 60 * time.Second
	case ClassSecondary:
		cfg.FailureThreshold = 3
		cfg.Timeout = 45 * time.Second
	case ClassVerifier:
		cfg.FailureThreshold = 5
		cfg.Timeout = 120 * time.Second
		cfg.SuccessThreshold = 1
	}
	return cfg
}

// BreakerRegistry manages one circuit breaker per named service. Breakers are
// created lazily and reused across calls and across concurrent subjects.
// Construct it once at process start and pass it by reference.
type BreakerRegistry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	configs  map[string]CircuitBreakerConfig
	fallback CircuitBreakerConfig
}

// NewBreakerRegistry creates a registry. configs supplies per-service
// configuration at startup; services not listed get fallback defaults.
func NewBreakerRegistry(configs map[string]CircuitBreakerConfig) *BreakerRegistry {
	return &BreakerRegistry{
		breakers: make(map[string]*CircuitBreaker),
		configs:  configs,
		fallback: DefaultCircuitBreakerConfig(""),
	}
}

// Get returns the circuit breaker for the named service, creating one if needed.
func (r *BreakerRegistry) Get(service string) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[service]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Double-check after acquiring write lock.
	if cb, ok = r.breakers[service]; ok {
		return cb
	}

	cfg, ok := r.configs[service]
	if !ok {
		cfg = r.fallback
	}
	cfg.Name = service
	if cfg.OnStateChange == nil {
		cfg.OnStateChange = logStateChange(service)
	}
	cb = NewCircuitBreaker(cfg)
	r.breakers[service] = cb
	return cb
}

// States returns a snapshot of all circuit breaker states.
func (r *BreakerRegistry) States() map[string]CircuitState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	states := make(map[string]CircuitState, len(r.breakers))
	for name, cb := range r.breakers {
		states[name] = cb.State()
	}
	return states
}

// Snapshot returns per-service lifetime counters and state for observability.
func (r *BreakerRegistry) Snapshot() map[string]BreakerStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]BreakerStatus, len(r.breakers))
	for name, cb := range r.breakers {
		out[name] = BreakerStatus{
			State:    cb.State().String(),
			Counters: cb.Counters(),
		}
	}
	return out
}

// BreakerStatus is a serializable view of one breaker.
type BreakerStatus struct {
	State    string          `json:"state"`
	Counters CircuitCounters `json:"counters"`
}

func logStateChange(service string) func(from, to CircuitState) {
	return func(from, to CircuitState) {
		zap.L().Warn("circuit state change",
			zap.String("service", service),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}
}
