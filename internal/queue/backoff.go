package queue

import (
	"time"

	"github.com/hibiken/asynq"
)

const maxBackoffShift = 20

// Backoff is the wait before retry number n+1: base * 2^n.
func Backoff(base time.Duration, n int) time.Duration {
	if n < 0 {
		n = 0
	}
	if n > maxBackoffShift {
		n = maxBackoffShift
	}
	return base << n
}

// RetryDelay adapts Backoff to asynq.Config.RetryDelayFunc.
func RetryDelay(base time.Duration) asynq.RetryDelayFunc {
	return func(n int, _ error, _ *asynq.Task) time.Duration {
		return Backoff(base, n)
	}
}
