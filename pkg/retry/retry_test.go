package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	s := Strategy{BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Multiplier: 2, MaxAttempts: 5}

	attempts := 0
	err := Do(context.Background(), s, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestDoReturnsLastErrorAfterExhaustingAttempts(t *testing.T) {
	s := Strategy{BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Multiplier: 2, MaxAttempts: 3}

	attempts := 0
	wantErr := errors.New("permanent")
	err := Do(context.Background(), s, func() error {
		attempts++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	s := Strategy{BaseDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 1, MaxAttempts: 3}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, s, func() error { return errors.New("always fails") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
