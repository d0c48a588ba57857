package upstream

import (
	"sync"
	"time"
)

// State is the state of a circuit breaker.
type State int

const (
	StateClosed   State = iota // requests flow
	StateOpen                  // requests fail fast
	StateHalfOpen              // one trial request allowed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker is a consecutive-failure circuit breaker for one credential and
// Medullar service.
type Breaker struct {
	mu sync.Mutex

	state         State
	failures      int
	openedAt      time.Time
	trialInFlight bool

	failureThreshold int
	recoveryInterval time.Duration
	now              func() time.Time
}

func NewBreaker(failureThreshold int, recoveryInterval time.Duration) *Breaker {
	return &Breaker{
		state:            StateClosed,
		failureThreshold: failureThreshold,
		recoveryInterval: recoveryInterval,
		now:              time.Now,
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

// currentState moves OPEN to HALF_OPEN once the recovery interval elapsed.
// Must be called with mu held.
func (b *Breaker) currentState() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.recoveryInterval {
		b.state = StateHalfOpen
		b.trialInFlight = false
	}
	return b.state
}

// Allow reports whether a request may be sent. In HALF_OPEN only the first
// caller gets through until that trial reports back.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentState() {
	case StateClosed:
		return true
	case StateHalfOpen:
		if b.trialInFlight {
			return false
		}
		b.trialInFlight = true
		return true
	}
	return false
}

func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.trialInFlight = false
	}
}

func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	switch b.state {
	case StateClosed:
		if b.failures >= b.failureThreshold {
			b.open()
		}
	case StateHalfOpen:
		// trial failed
		b.open()
	}
}

// Release hands back a half-open trial whose outcome is unknown, letting the
// next caller try instead.
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trialInFlight = false
}

func (b *Breaker) open() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.trialInFlight = false
}

func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.trialInFlight = false
}
