package pregel

import (
	"math/rand"
	"testing"
	"time"
)

func TestRetryPolicyValidateRejectsZeroMaxAttempts(t *testing.T) {
	rp := &RetryPolicy{MaxAttempts: 0}
	if err := rp.Validate(); err != ErrInvalidRetryPolicy {
		t.Fatalf("expected ErrInvalidRetryPolicy, got %v", err)
	}
}

func TestRetryPolicyValidateRejectsMaxDelayBelowBaseDelay(t *testing.T) {
	rp := &RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 500 * time.Millisecond}
	if err := rp.Validate(); err != ErrInvalidRetryPolicy {
		t.Fatalf("expected ErrInvalidRetryPolicy, got %v", err)
	}
}

func TestRetryPolicyValidateAcceptsSaneConfig(t *testing.T) {
	rp := &RetryPolicy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	if err := rp.Validate(); err != nil {
		t.Fatalf("expected a valid policy to pass, got %v", err)
	}
}

func TestComputeBackoffCapsAtMaxDelay(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	base := 100 * time.Millisecond
	maxDelay := 300 * time.Millisecond

	delay := computeBackoff(10, base, maxDelay, rng)
	if delay < maxDelay || delay > maxDelay+base {
		t.Fatalf("expected delay capped at maxDelay plus jitter, got %s", delay)
	}
}

func TestComputeBackoffGrowsExponentiallyBeforeCap(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	base := 10 * time.Millisecond

	d0 := computeBackoff(0, base, 0, rng)
	d1 := computeBackoff(1, base, 0, rng)
	if d1 < 2*base {
		t.Fatalf("expected attempt 1's exponential component to be at least 2x base, got d0=%s d1=%s", d0, d1)
	}
}

func TestComputeBackoffZeroBaseHasNoJitter(t *testing.T) {
	delay := computeBackoff(2, 0, 0, rand.New(rand.NewSource(1)))
	if delay != 0 {
		t.Fatalf("expected zero delay when base is zero, got %s", delay)
	}
}
