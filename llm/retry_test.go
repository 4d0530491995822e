package llm

import (
	"context"
	"testing"
	"time"
)

func retryableServerError() error {
	return &ServerError{ProviderError: ProviderError{
		ClientError: ClientError{Message: "server error"}, Retryable: true,
	}}
}

func TestBackoffGrowsGeometrically(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts: 10,
		BaseDelay:   time.Second,
		MaxDelay:    60 * time.Second,
		Multiplier:  2,
	}

	expected := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
	}
	for i, want := range expected {
		got, retry := policy.backoff(i+1, retryableServerError())
		if !retry {
			t.Fatalf("attempt %d: expected a retry", i+1)
		}
		if got != want {
			t.Errorf("attempt %d: expected %v, got %v", i+1, want, got)
		}
	}
}

func TestBackoffCapsAtMaxDelay(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts: 20,
		BaseDelay:   time.Second,
		MaxDelay:    5 * time.Second,
		Multiplier:  2,
	}

	got, retry := policy.backoff(10, retryableServerError())
	if !retry {
		t.Fatal("expected a retry")
	}
	if got != 5*time.Second {
		t.Errorf("expected 5s (capped), got %v", got)
	}
}

func TestBackoffJitterRange(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts: 10,
		BaseDelay:   time.Second,
		MaxDelay:    60 * time.Second,
		Multiplier:  2,
		Jitter:      true,
	}

	for i := 0; i < 100; i++ {
		got, retry := policy.backoff(1, retryableServerError())
		if !retry {
			t.Fatal("expected a retry")
		}
		if got < 500*time.Millisecond || got > 1500*time.Millisecond {
			t.Errorf("jittered delay out of range: %v", got)
		}
	}
}

func TestBackoffExhaustedAttempts(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2}

	if _, retry := policy.backoff(2, retryableServerError()); !retry {
		t.Error("expected a retry before the attempt limit")
	}
	if _, retry := policy.backoff(3, retryableServerError()); retry {
		t.Error("expected no retry at the attempt limit")
	}
}

func TestBackoffHonorsRetryAfterHint(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2}

	retryAfter := 12.0
	err := &RateLimitError{ProviderError: ProviderError{
		ClientError: ClientError{Message: "rate limited"},
		Retryable:   true,
		RetryAfter:  &retryAfter,
	}}

	got, retry := policy.backoff(1, err)
	if !retry {
		t.Fatal("expected a retry")
	}
	if got != 12*time.Second {
		t.Errorf("expected the 12s hint, got %v", got)
	}
}

func TestRetrySuccessAfterTransientErrors(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 4, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

	callCount := 0
	result, err := Retry(context.Background(), policy, func(ctx context.Context) (string, error) {
		callCount++
		if callCount < 3 {
			return "", retryableServerError()
		}
		return "success", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "success" {
		t.Errorf("expected %q, got %q", "success", result)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetryNonRetryableError(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 4, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

	callCount := 0
	_, err := Retry(context.Background(), policy, func(ctx context.Context) (string, error) {
		callCount++
		return "", &AuthenticationError{ProviderError: ProviderError{
			ClientError: ClientError{Message: "invalid key"},
		}}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if callCount != 1 {
		t.Errorf("expected 1 call (no retries for non-retryable), got %d", callCount)
	}
}

func TestRetryExhausted(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

	callCount := 0
	onRetryCalls := 0
	policy.OnRetry = func(err error, attempt int, delay time.Duration) { onRetryCalls++ }

	_, err := Retry(context.Background(), policy, func(ctx context.Context) (string, error) {
		callCount++
		return "", retryableServerError()
	})
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if callCount != 3 {
		t.Errorf("expected 3 attempts, got %d", callCount)
	}
	if onRetryCalls != 2 {
		t.Errorf("expected OnRetry before each of the 2 retries, got %d", onRetryCalls)
	}
}

func TestRetryGivesUpOnExcessiveRetryAfter(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Multiplier: 1}

	retryAfter := 120.0
	callCount := 0
	_, err := Retry(context.Background(), policy, func(ctx context.Context) (string, error) {
		callCount++
		return "", &RateLimitError{ProviderError: ProviderError{
			ClientError: ClientError{Message: "rate limited"},
			Retryable:   true,
			RetryAfter:  &retryAfter,
		}}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if callCount != 1 {
		t.Errorf("expected no retry when Retry-After exceeds MaxDelay, got %d calls", callCount)
	}
}

func TestRetryCancelledContext(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: 10 * time.Second, MaxDelay: 10 * time.Second, Multiplier: 1}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Retry(ctx, policy, func(ctx context.Context) (string, error) {
		return "", retryableServerError()
	})
	if _, ok := err.(*AbortError); !ok {
		t.Errorf("expected AbortError, got %T", err)
	}
}
