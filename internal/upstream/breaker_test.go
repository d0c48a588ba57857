package upstream

import (
	"testing"
	"time"
)

// fakeClock drives a breaker without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int, interval time.Duration) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	b := NewBreaker(threshold, interval)
	b.now = clock.now
	return b, clock
}

func TestBreaker_StartsClosedAndAllows(t *testing.T) {
	b, _ := newTestBreaker(3, 5*time.Second)
	if b.State() != StateClosed {
		t.Errorf("expected StateClosed, got %s", b.State())
	}
	if !b.Allow() {
		t.Error("expected Allow=true for closed circuit")
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, 5*time.Second)

	b.RecordFailure()
	b.RecordFailure()
	if b.State() != StateClosed {
		t.Error("expected StateClosed after 2 failures")
	}

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Errorf("expected StateOpen after 3 failures, got %s", b.State())
	}
	if b.Allow() {
		t.Error("expected Allow=false for open circuit")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(3, 5*time.Second)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()

	if b.State() != StateClosed {
		t.Errorf("expected StateClosed, failures are consecutive, got %s", b.State())
	}
}

func TestBreaker_HalfOpenAllowsSingleTrial(t *testing.T) {
	b, clock := newTestBreaker(1, 10*time.Second)

	b.RecordFailure()
	clock.advance(10 * time.Second)

	if b.State() != StateHalfOpen {
		t.Fatalf("expected StateHalfOpen after recovery interval, got %s", b.State())
	}
	if !b.Allow() {
		t.Error("expected the first trial request to be allowed")
	}
	if b.Allow() {
		t.Error("expected a second concurrent trial request to be rejected")
	}
}

func TestBreaker_HalfOpen_SuccessCloses(t *testing.T) {
	b, clock := newTestBreaker(1, 10*time.Second)

	b.RecordFailure()
	clock.advance(11 * time.Second)
	b.Allow()
	b.RecordSuccess()

	if b.State() != StateClosed {
		t.Errorf("expected StateClosed after successful trial request, got %s", b.State())
	}
	if !b.Allow() {
		t.Error("expected requests to flow after close")
	}
}

func TestBreaker_HalfOpen_FailureReopens(t *testing.T) {
	b, clock := newTestBreaker(1, 10*time.Second)

	b.RecordFailure()
	clock.advance(11 * time.Second)
	b.Allow()
	b.RecordFailure()

	if b.State() != StateOpen {
		t.Errorf("expected StateOpen after failed trial request, got %s", b.State())
	}
}

func TestBreaker_ReleaseFreesTrial(t *testing.T) {
	b, clock := newTestBreaker(1, 5*time.Second)
	b.RecordFailure()
	clock.advance(5 * time.Second)

	if !b.Allow() {
		t.Fatal("expected first trial request to be allowed")
	}
	b.Release()
	if !b.Allow() {
		t.Error("expected a new trial request after release")
	}
	if b.State() != StateHalfOpen {
		t.Errorf("expected StateHalfOpen, got %s", b.State())
	}
}

func TestBreaker_Reset(t *testing.T) {
	b, _ := newTestBreaker(1, 5*time.Second)
	b.RecordFailure()
	b.Reset()
	if b.State() != StateClosed || !b.Allow() {
		t.Errorf("expected closed and allowing after reset, got %s", b.State())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half_open"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}
