package upstream

import (
	"sync"
	"time"

	"github.com/af-corp/medullar-gateway/internal/telemetry"
)

// Tracker holds one breaker per (credential, Medullar service) pair, so a
// failing key never fails fast for another caller.
type Tracker struct {
	mu       sync.RWMutex
	breakers map[breakerKey]*Breaker

	failureThreshold int
	recoveryInterval time.Duration
	metrics          *telemetry.Metrics
}

type breakerKey struct {
	scope   string
	service string
}

// NewTracker returns a tracker. A failureThreshold below 1 disables circuit
// breaking and every request is allowed.
func NewTracker(failureThreshold int, recoveryInterval time.Duration, metrics *telemetry.Metrics) *Tracker {
	return &Tracker{
		breakers:         make(map[breakerKey]*Breaker),
		failureThreshold: failureThreshold,
		recoveryInterval: recoveryInterval,
		metrics:          metrics,
	}
}

// Breaker returns (or lazily creates) the breaker for scope and service.
func (t *Tracker) Breaker(scope, service string) *Breaker {
	key := breakerKey{scope: scope, service: service}
	t.mu.RLock()
	b, ok := t.breakers[key]
	t.mu.RUnlock()
	if ok {
		return b
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.breakers[key]; ok {
		return b
	}
	b = NewBreaker(t.failureThreshold, t.recoveryInterval)
	t.breakers[key] = b
	return b
}

func (t *Tracker) enabled() bool {
	return t != nil && t.failureThreshold > 0
}

func (t *Tracker) Allow(scope, service string) bool {
	if !t.enabled() {
		return true
	}
	return t.Breaker(scope, service).Allow()
}

func (t *Tracker) RecordSuccess(scope, service string) {
	if !t.enabled() {
		return
	}
	t.Breaker(scope, service).RecordSuccess()
}

func (t *Tracker) RecordFailure(scope, service string) {
	if !t.enabled() {
		return
	}
	b := t.Breaker(scope, service)
	before := b.State()
	b.RecordFailure()
	if before != StateOpen && b.State() == StateOpen && t.metrics != nil {
		t.metrics.RecordCircuitOpen(service)
	}
}

// Release returns a half-open trial that ended without a verdict.
func (t *Tracker) Release(scope, service string) {
	if !t.enabled() {
		return
	}
	t.Breaker(scope, service).Release()
}
