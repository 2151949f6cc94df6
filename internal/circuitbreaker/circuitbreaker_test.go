package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func TestExecutePassesThroughSuccess(t *testing.T) {
	cb := New[int](Config{Name: "test", MaxConsecutiveFails: 2, OpenTimeout: 10 * time.Millisecond, HalfOpenMaxRequests: 1})

	got, err := cb.Execute(func() (int, error) { return 42, nil })
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
}

func TestExecuteTripsAfterConsecutiveFailures(t *testing.T) {
	cb := New[int](Config{Name: "test", MaxConsecutiveFails: 2, OpenTimeout: time.Minute, HalfOpenMaxRequests: 1})

	wantErr := errors.New("boom")
	for i := 0; i < 2; i++ {
		if _, err := cb.Execute(func() (int, error) { return 0, wantErr }); !errors.Is(err, wantErr) {
			t.Fatalf("call %d: got err %v, want %v", i, err, wantErr)
		}
	}

	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open after %d consecutive failures", cb.State(), 2)
	}

	if _, err := cb.Execute(func() (int, error) { return 1, nil }); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected ErrOpenState while breaker is open, got %v", err)
	}
}
