package resilience

import (
	"errors"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream down")

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		err := b.Execute(func() error { return errUpstream })
		if !errors.Is(err, errUpstream) {
			t.Fatalf("attempt %d: expected upstream error, got %v", i, err)
		}
	}

	err := b.Execute(func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	_ = b.Execute(func() error { return errUpstream })
	_ = b.Execute(func() error { return errUpstream })
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Two more failures should not trip a threshold of three.
	_ = b.Execute(func() error { return errUpstream })
	_ = b.Execute(func() error { return errUpstream })
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("circuit should still be closed, got %v", err)
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := NewBreaker(1, time.Minute)
	clock := time.Now()
	b.now = func() time.Time { return clock }

	_ = b.Execute(func() error { return errUpstream })
	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}

	// After the cooldown one probe is allowed; success closes the circuit.
	clock = clock.Add(time.Minute)
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("half-open probe should pass, got %v", err)
	}
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("circuit should be closed, got %v", err)
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker(1, time.Minute)
	clock := time.Now()
	b.now = func() time.Time { return clock }

	_ = b.Execute(func() error { return errUpstream })
	clock = clock.Add(time.Minute)
	_ = b.Execute(func() error { return errUpstream })

	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected reopened circuit, got %v", err)
	}
}
