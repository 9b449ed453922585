package lookupd

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, 100*time.Millisecond)

	if cb.State() != BreakerClosed {
		t.Fatalf("initial state = %v, want closed", cb.State())
	}

	indexDown := errors.New("connection refused")
	for i := 0; i < 3; i++ {
		cb.Execute(context.Background(), func() error { return indexDown })
	}
	if cb.State() != BreakerOpen {
		t.Fatalf("state after 3 failures = %v, want open", cb.State())
	}

	// Open breaker fails fast without running the call.
	err := cb.Execute(context.Background(), func() error {
		t.Error("call ran while breaker open")
		return nil
	})
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("open breaker error = %v, want ErrBackendUnavailable", err)
	}

	// After the cooldown a successful trial call closes it again.
	time.Sleep(150 * time.Millisecond)
	cb.Execute(context.Background(), func() error { return nil })
	if cb.State() != BreakerClosed {
		t.Errorf("state after successful trial call = %v, want closed", cb.State())
	}
}

func TestCircuitBreakerSuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker(5, time.Second)

	indexDown := errors.New("connection refused")
	for i := 0; i < 3; i++ {
		cb.Execute(context.Background(), func() error { return indexDown })
	}
	if cb.Failures() != 3 {
		t.Fatalf("failures = %d, want 3", cb.Failures())
	}

	cb.Execute(context.Background(), func() error { return nil })
	if cb.Failures() != 0 {
		t.Errorf("failures after success = %d, want 0", cb.Failures())
	}
}

func TestCircuitBreakerTransitionCallback(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(2, 50*time.Millisecond).
		OnStateChange(func(from, to BreakerState) {
			transitions = append(transitions, from.String()+" to "+to.String())
		})

	indexDown := errors.New("connection refused")
	cb.Execute(context.Background(), func() error { return indexDown })
	cb.Execute(context.Background(), func() error { return indexDown })

	if len(transitions) == 0 || transitions[0] != "closed to open" {
		t.Fatalf("transitions = %v, want first closed to open", transitions)
	}

	time.Sleep(100 * time.Millisecond)
	cb.Execute(context.Background(), func() error { return nil })

	want := []string{"closed to open", "open to half-open", "half-open to closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition[%d] = %q, want %q", i, transitions[i], want[i])
		}
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(2, 50*time.Millisecond)

	indexDown := errors.New("connection refused")
	cb.Execute(context.Background(), func() error { return indexDown })
	cb.Execute(context.Background(), func() error { return indexDown })

	time.Sleep(100 * time.Millisecond)

	cb.Execute(context.Background(), func() error { return indexDown })
	if cb.State() != BreakerOpen {
		t.Errorf("state after failed trial call = %v, want open", cb.State())
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Second)

	indexDown := errors.New("connection refused")
	cb.Execute(context.Background(), func() error { return indexDown })
	cb.Execute(context.Background(), func() error { return indexDown })
	if cb.State() != BreakerOpen {
		t.Fatal("breaker should be open")
	}

	cb.Reset()
	if cb.State() != BreakerClosed {
		t.Errorf("state after reset = %v, want closed", cb.State())
	}
	if cb.Failures() != 0 {
		t.Errorf("failures after reset = %d, want 0", cb.Failures())
	}
}

func TestCircuitBreakerConcurrentCalls(t *testing.T) {
	cb := NewCircuitBreaker(10, 100*time.Millisecond)

	done := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		go func() {
			cb.Execute(context.Background(), func() error {
				time.Sleep(10 * time.Millisecond)
				return nil
			})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if cb.State() != BreakerClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}
