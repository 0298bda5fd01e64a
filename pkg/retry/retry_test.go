package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}

	if config.InitialInterval != 100*time.Millisecond {
		t.Errorf("InitialInterval = %v, want 100ms", config.InitialInterval)
	}

	if config.MaxInterval != 2*time.Second {
		t.Errorf("MaxInterval = %v, want 2s", config.MaxInterval)
	}

	if config.Multiplier != 2.0 {
		t.Errorf("Multiplier = %f, want 2.0", config.Multiplier)
	}
}

func TestNew_WithNilConfig(t *testing.T) {
	retrier := New(nil)
	if retrier == nil {
		t.Fatal("New(nil) returned nil")
	}

	if retrier.config.InitialInterval != 100*time.Millisecond {
		t.Errorf("Default InitialInterval = %v, want 100ms", retrier.config.InitialInterval)
	}
}

func TestNew_WithZeroValues(t *testing.T) {
	config := &Config{}
	retrier := New(config)

	if retrier.config.InitialInterval != 100*time.Millisecond {
		t.Errorf("InitialInterval = %v, want 100ms (default)", retrier.config.InitialInterval)
	}

	if retrier.config.MaxInterval != 2*time.Second {
		t.Errorf("MaxInterval = %v, want 2s (default)", retrier.config.MaxInterval)
	}

	if retrier.config.Multiplier != 2.0 {
		t.Errorf("Multiplier = %f, want 2.0 (default)", retrier.config.Multiplier)
	}
}

func TestRetrier_Do_Success(t *testing.T) {
	config := &Config{
		MaxRetries:      3,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     100 * time.Millisecond,
		Multiplier:      2.0,
		DisableJitter:   true,
	}

	retrier := New(config)

	attempts := 0
	op := func(ctx context.Context) error {
		attempts++
		return nil
	}

	result := retrier.Do(context.Background(), op)

	if result.Err != nil {
		t.Errorf("Err = %v, want nil", result.Err)
	}

	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", result.Attempts)
	}

	if attempts != 1 {
		t.Errorf("Operation called %d times, want 1", attempts)
	}
}

func TestRetrier_Do_SuccessAfterRetries(t *testing.T) {
	config := &Config{
		MaxRetries:      5,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     100 * time.Millisecond,
		Multiplier:      2.0,
		DisableJitter:   true,
	}

	retrier := New(config)

	attempts := 0
	op := func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	result := retrier.Do(context.Background(), op)

	if result.Err != nil {
		t.Errorf("Err = %v, want nil", result.Err)
	}

	if result.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
}

func TestRetrier_Do_Exhausted(t *testing.T) {
	config := &Config{
		MaxRetries:      2,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
		Multiplier:      2.0,
		DisableJitter:   true,
	}

	retrier := New(config)

	cause := errors.New("still conflicting")
	attempts := 0
	op := func(ctx context.Context) error {
		attempts++
		return cause
	}

	result := retrier.Do(context.Background(), op)

	if !errors.Is(result.Err, ErrMaxRetriesExceeded) {
		t.Errorf("Err = %v, want ErrMaxRetriesExceeded", result.Err)
	}

	if !errors.Is(result.Err, cause) {
		t.Errorf("Err does not wrap the last cause: %v", result.Err)
	}

	if attempts != 3 {
		t.Errorf("Operation called %d times, want 3 (initial + 2 retries)", attempts)
	}

	if result.LastError != cause {
		t.Errorf("LastError = %v, want %v", result.LastError, cause)
	}
}

func TestRetrier_Do_PermanentNotRetried(t *testing.T) {
	config := &Config{
		MaxRetries:      5,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     100 * time.Millisecond,
		Multiplier:      2.0,
		DisableJitter:   true,
	}

	retrier := New(config)

	cause := errors.New("validation failed")
	attempts := 0
	op := func(ctx context.Context) error {
		attempts++
		return Permanent(cause)
	}

	start := time.Now()
	result := retrier.Do(context.Background(), op)
	elapsed := time.Since(start)

	if attempts != 1 {
		t.Errorf("Operation called %d times, want 1", attempts)
	}

	if result.Err != cause {
		t.Errorf("Err = %v, want unwrapped cause %v", result.Err, cause)
	}

	// A permanent error must propagate without any backoff delay
	if elapsed > 5*time.Millisecond {
		t.Errorf("permanent error took %v, expected immediate return", elapsed)
	}
}

func TestRetrier_Do_ContextCanceled(t *testing.T) {
	config := &Config{
		MaxRetries:      10,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2.0,
		DisableJitter:   true,
	}

	retrier := New(config)

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	op := func(ctx context.Context) error {
		attempts++
		cancel()
		return errors.New("transient")
	}

	result := retrier.Do(ctx, op)

	if !errors.Is(result.Err, ErrContextCanceled) {
		t.Errorf("Err = %v, want ErrContextCanceled", result.Err)
	}

	if attempts != 1 {
		t.Errorf("Operation called %d times, want 1", attempts)
	}
}

func TestRetrier_CalculateInterval_Caps(t *testing.T) {
	config := &Config{
		MaxRetries:      5,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     300 * time.Millisecond,
		Multiplier:      2.0,
		DisableJitter:   true,
	}

	retrier := New(config)

	if got := retrier.calculateInterval(0); got != 100*time.Millisecond {
		t.Errorf("interval(0) = %v, want 100ms", got)
	}
	if got := retrier.calculateInterval(1); got != 200*time.Millisecond {
		t.Errorf("interval(1) = %v, want 200ms", got)
	}
	if got := retrier.calculateInterval(4); got != 300*time.Millisecond {
		t.Errorf("interval(4) = %v, want capped 300ms", got)
	}
}

func TestRetrier_CalculateInterval_JitterRange(t *testing.T) {
	config := &Config{
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2.0,
	}

	retrier := New(config)

	// Jittered delay scales the base by a uniform factor in [0.5, 1.0]
	for i := 0; i < 100; i++ {
		got := retrier.calculateInterval(0)
		if got < 50*time.Millisecond || got > 100*time.Millisecond {
			t.Fatalf("jittered interval %v outside [50ms, 100ms]", got)
		}
	}
}

func TestDoWithCallback(t *testing.T) {
	config := &Config{
		MaxRetries:      2,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
		Multiplier:      2.0,
		DisableJitter:   true,
	}

	var callbackAttempts []int
	op := func(ctx context.Context) error {
		return errors.New("transient")
	}

	DoWithCallback(context.Background(), config, op, func(attempt int, err error, next time.Duration) {
		callbackAttempts = append(callbackAttempts, attempt)
	})

	if len(callbackAttempts) != 2 {
		t.Fatalf("callback invoked %d times, want 2", len(callbackAttempts))
	}
}
