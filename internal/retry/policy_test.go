package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPolicy_DefaultConfig(t *testing.T) {
	config := DefaultPolicyConfig()

	if config.InitialDelay != time.Second {
		t.Errorf("Expected initial delay of 1s, got %v", config.InitialDelay)
	}

	if config.MaxAttempts != 3 {
		t.Errorf("Expected max attempts of 3, got %d", config.MaxAttempts)
	}

	if config.Multiplier != 1.0 {
		t.Errorf("Expected multiplier of 1.0, got %v", config.Multiplier)
	}
}

func TestPolicy_SuccessFirstAttempt(t *testing.T) {
	policy := NewPolicy(PolicyConfig{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		MaxAttempts:  3,
	})

	attempts := 0
	operation := func() error {
		attempts++
		return nil
	}

	if err := policy.Do(context.Background(), operation); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestPolicy_SuccessAfterRetries(t *testing.T) {
	policy := NewPolicy(PolicyConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  3,
	})

	attempts := 0
	operation := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	if err := policy.Do(context.Background(), operation); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestPolicy_ExhaustsBudget(t *testing.T) {
	policy := NewPolicy(PolicyConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   1.0,
		MaxAttempts:  4,
	})

	attempts := 0
	wantErr := errors.New("persistent error")
	err := policy.Do(context.Background(), func() error {
		attempts++
		return wantErr
	})

	if !errors.Is(err, wantErr) {
		t.Errorf("Expected last error to be returned, got %v", err)
	}

	if attempts != 4 {
		t.Errorf("Expected 4 attempts, got %d", attempts)
	}
}

func TestPolicy_NonRetryableStopsImmediately(t *testing.T) {
	policy := NewPolicy(PolicyConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   1.0,
		MaxAttempts:  5,
	})

	attempts := 0
	terminal := errors.New("not found")
	err := policy.DoWithPredicate(context.Background(), func() error {
		attempts++
		return terminal
	}, func(err error) bool {
		return false
	})

	if !errors.Is(err, terminal) {
		t.Errorf("Expected terminal error, got %v", err)
	}

	if attempts != 1 {
		t.Errorf("Expected 1 attempt for non-retryable error, got %d", attempts)
	}
}

func TestPolicy_ContextCancellation(t *testing.T) {
	policy := NewPolicy(PolicyConfig{
		InitialDelay: time.Second,
		MaxDelay:     time.Second,
		Multiplier:   1.0,
		MaxAttempts:  5,
	})

	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := policy.Do(ctx, func() error {
		attempts++
		cancel()
		return errors.New("fail then cancel")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	if attempts != 1 {
		t.Errorf("Expected 1 attempt before cancellation, got %d", attempts)
	}
}

func TestPolicy_NextDelayGrowth(t *testing.T) {
	policy := NewPolicy(PolicyConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		MaxAttempts:  5,
	})

	if d := policy.NextDelay(1); d != 100*time.Millisecond {
		t.Errorf("Expected 100ms after first attempt, got %v", d)
	}
	if d := policy.NextDelay(2); d != 200*time.Millisecond {
		t.Errorf("Expected 200ms after second attempt, got %v", d)
	}
	if d := policy.NextDelay(10); d != time.Second {
		t.Errorf("Expected cap at 1s, got %v", d)
	}
}
