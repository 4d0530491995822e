package llm

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryPolicy governs how Retry paces repeated attempts. Delays grow
// geometrically from BaseDelay up to MaxDelay. A rate-limited provider's
// Retry-After hint overrides the computed delay; a hint beyond MaxDelay
// stops retrying altogether.
type RetryPolicy struct {
	MaxAttempts int // total attempts, including the first; 0 or 1 disables retries
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	Jitter      bool // randomize each delay within 50%-150%
	OnRetry     func(err error, attempt int, delay time.Duration)
}

// DefaultRetryPolicy returns the retry policy clients start with.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2,
		Jitter:      true,
	}
}

// backoff returns the pause before the next attempt, or false when the
// policy gives up on err. attempt counts attempts already made.
func (p RetryPolicy) backoff(attempt int, err error) (time.Duration, bool) {
	if attempt >= p.MaxAttempts || !IsRetryable(err) {
		return 0, false
	}

	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter != nil {
		hint := time.Duration(*rl.RetryAfter * float64(time.Second))
		if hint > p.MaxDelay {
			return 0, false
		}
		return hint, true
	}

	delay := p.BaseDelay
	for i := 1; i < attempt && delay < p.MaxDelay; i++ {
		delay = time.Duration(float64(delay) * p.Multiplier)
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter {
		delay = time.Duration(float64(delay) * (0.5 + rand.Float64()))
	}
	return delay, true
}

// Retry runs fn until it succeeds, the policy gives up, or ctx is done.
// Cancellation during a pause surfaces as an AbortError.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		delay, retry := policy.backoff(attempt, err)
		if !retry {
			return zero, err
		}
		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, &AbortError{ClientError: ClientError{Message: "request cancelled during retry", Cause: ctx.Err()}}
		case <-timer.C:
		}
	}
}
