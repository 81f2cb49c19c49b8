package worker

import (
	"time"

	"swift2s3/internal/storage"
)

// Decision tells a retry loop what to do with a failed attempt.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// RetryPolicy decides whether a failed operation should be retried. It is
// stateless: the attempt number is threaded in by the caller.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// NewRetryPolicy builds a policy with the exponential curve
// BaseDelay * 2^(attempt-1), capped at 30s.
func NewRetryPolicy(maxAttempts int, backoffMs int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Duration(backoffMs) * time.Millisecond,
		MaxDelay:    30 * time.Second,
	}
}

// Decide classifies err after the given 1-based attempt number. Fatal
// errors give up regardless of attempt count; transient errors retry with
// exponentially growing delay until MaxAttempts is reached.
func (p RetryPolicy) Decide(attempt int, err error) Decision {
	if err == nil || !storage.IsTransient(err) {
		return Decision{}
	}
	if attempt >= p.MaxAttempts {
		return Decision{}
	}
	return Decision{Retry: true, Delay: p.backoff(attempt)}
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}
