package job

import (
	"errors"
	"time"
)

// ErrInvalidRetryBackoff indicates retries were requested without a positive base backoff.
var ErrInvalidRetryBackoff = errors.New("retry backoff must be positive when retries are enabled")

const defaultMaxBackoff = 30 * time.Second

// RetryPolicy spaces publish attempts with a doubling, capped backoff.
// The zero value disables retries.
type RetryPolicy struct {
	retries int
	base    time.Duration
	max     time.Duration
}

// NewRetryPolicy builds a policy allowing up to retries extra attempts after the first.
// A non-positive maxBackoff falls back to 30s.
func NewRetryPolicy(retries int, base, maxBackoff time.Duration) (RetryPolicy, error) {
	if retries <= 0 {
		return RetryPolicy{}, nil
	}
	if base <= 0 {
		return RetryPolicy{}, ErrInvalidRetryBackoff
	}
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}
	if maxBackoff < base {
		maxBackoff = base
	}
	return RetryPolicy{retries: retries, base: base, max: maxBackoff}, nil
}

// Attempts returns the total number of attempts, including the first.
func (p RetryPolicy) Attempts() int {
	return p.retries + 1
}

// RetryDecision describes whether another attempt is allowed and how long to wait first.
type RetryDecision struct {
	Retry  bool
	Delay  time.Duration
	Capped bool
}

// Next decides what to do after the given failed attempt (1-based).
func (p RetryPolicy) Next(attempt int) RetryDecision {
	if attempt < 1 || attempt > p.retries {
		return RetryDecision{}
	}

	delay := p.base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.max {
			return RetryDecision{Retry: true, Delay: p.max, Capped: true}
		}
	}
	if delay >= p.max {
		return RetryDecision{Retry: true, Delay: p.max, Capped: delay > p.max}
	}
	return RetryDecision{Retry: true, Delay: delay}
}
