package pregel

import (
	"math/rand"
	"time"
)

// NodePolicy configures one node's execution behavior: timeout and retry.
// Its IdempotencyKeyFunc and SideEffect fields are carried but not acted on
// by the engine. If unset, the Graph's Options defaults apply.
type NodePolicy struct {
	// Timeout is the maximum execution time allowed for this node's task.
	// If zero, Options.DefaultNodeTimeout is used.
	Timeout time.Duration

	// RetryPolicy specifies automatic retry behavior for transient
	// failures. If nil, no retries are attempted.
	RetryPolicy *RetryPolicy

	// IdempotencyKeyFunc derives a custom idempotency key from a task's
	// input. It is stored on the policy; the engine does not call it and
	// derives no idempotency key of its own.
	IdempotencyKeyFunc func(input any) string

	// SideEffect declares this node's external I/O characteristics. It is
	// stored on the policy; the engine does not read it.
	SideEffect SideEffectPolicy
}

// RetryPolicy governs automatic retry of a failed task. Exponential
// backoff with jitter spaces out retries to avoid thundering-herd retry
// storms across concurrently failing tasks.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	// Must be >= 1; 1 means no retries.
	MaxAttempts int

	// BaseDelay is the base delay for exponential backoff between
	// retries: delay = min(BaseDelay*2^attempt, MaxDelay) + jitter(0,BaseDelay).
	BaseDelay time.Duration

	// MaxDelay caps the exponential growth. Must be >= BaseDelay when both
	// are non-zero.
	MaxDelay time.Duration

	// Retryable decides whether a given error should be retried. If nil,
	// no error is retried regardless of MaxAttempts.
	Retryable func(error) bool
}

// SideEffectPolicy declares a node's external I/O characteristics: whether
// its interactions are recordable and whether it needs an idempotency key
// to avoid double execution of a non-idempotent side effect (a payment, a
// send). Nothing in the engine reads these flags.
type SideEffectPolicy struct {
	Recordable          bool
	RequiresIdempotency bool
}

// computeBackoff returns the delay before the next retry attempt, using
// exponential backoff with jitter: delay = min(base*2^attempt, maxDelay) +
// jitter(0, base). rng should be the task's seeded RNG so replay reproduces
// identical delays.
func computeBackoff(attempt int, base, maxDelay time.Duration, rng *rand.Rand) time.Duration {
	exponentialDelay := base * (1 << attempt)
	if maxDelay > 0 && exponentialDelay > maxDelay {
		exponentialDelay = maxDelay
	}

	var jitter time.Duration
	if base > 0 {
		if rng != nil {
			jitter = time.Duration(rng.Int63n(int64(base)))
		} else {
			jitter = time.Duration(rand.Int63n(int64(base))) //nolint:gosec // retry jitter, not security sensitive
		}
	}

	return exponentialDelay + jitter
}

// Validate checks MaxAttempts >= 1 and, when both delays are set, that
// MaxDelay >= BaseDelay.
func (rp *RetryPolicy) Validate() error {
	if rp.MaxAttempts < 1 {
		return ErrInvalidRetryPolicy
	}
	if rp.MaxDelay > 0 && rp.BaseDelay > 0 && rp.MaxDelay < rp.BaseDelay {
		return ErrInvalidRetryPolicy
	}
	return nil
}
