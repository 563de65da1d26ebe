package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// RetryPolicy bounds how long and how often a completion is attempted.
type RetryPolicy struct {
	// Timeout applies to each attempt; zero means no per-attempt deadline.
	Timeout time.Duration
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	// Backoff is the wait before the first retry; it doubles per retry.
	Backoff time.Duration
	// RequestsPerSecond paces attempts across callers; zero disables pacing.
	RequestsPerSecond float64
}

// Retrying retries failed completions of an underlying client.
type Retrying struct {
	next    Client
	policy  RetryPolicy
	limiter *rate.Limiter
}

func NewRetrying(next Client, policy RetryPolicy) *Retrying {
	if policy.Backoff <= 0 {
		policy.Backoff = 500 * time.Millisecond
	}
	r := &Retrying{next: next, policy: policy}
	if policy.RequestsPerSecond > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(policy.RequestsPerSecond), 1)
	}
	return r
}

func (r *Retrying) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	var lastErr error
	backoff := r.policy.Backoff

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("retrying completion", "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return "", errors.Join(lastErr, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return "", errors.Join(lastErr, err)
			}
		}

		text, err := r.attempt(ctx, prompt, opts)
		if err == nil {
			return text, nil
		}
		lastErr = err

		// the caller gave up; further attempts cannot succeed
		if ctx.Err() != nil {
			return "", lastErr
		}
	}

	return "", lastErr
}

func (r *Retrying) attempt(ctx context.Context, prompt string, opts Options) (string, error) {
	if r.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.policy.Timeout)
		defer cancel()
	}
	return r.next.Complete(ctx, prompt, opts)
}

// Close releases the underlying client when it holds resources.
func (r *Retrying) Close() error {
	if c, ok := r.next.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
