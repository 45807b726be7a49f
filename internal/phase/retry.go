package phase

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds retry behaviour for one phase. Delays follow
// BaseDelay * Multiplier^(attempt-1).
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Multiplier float64
}

// PolicyFor returns the retry policy for a phase. Building tolerates several
// transient render failures; metadata and tagging get a single cheap retry;
// everything else runs once.
func PolicyFor(p Phase) Policy {
	switch p {
	case Building:
		return Policy{MaxRetries: 3, BaseDelay: 100 * time.Millisecond, Multiplier: 2}
	case Metadata:
		return Policy{MaxRetries: 1, BaseDelay: 50 * time.Millisecond, Multiplier: 1}
	case Tagging:
		return Policy{MaxRetries: 1, BaseDelay: 50 * time.Millisecond, Multiplier: 1}
	default:
		return Policy{MaxRetries: 0, BaseDelay: 0, Multiplier: 1}
	}
}

// Hooks receives retry lifecycle callbacks.
type Hooks struct {
	// OnRetry fires before each backoff sleep with the failed attempt number
	// (1-based), the total attempt budget, the classified error, and the
	// upcoming delay.
	OnRetry func(attempt, totalAttempts int, err *ClassifyError, delay time.Duration)
	// OnFatal fires once when a fatal error aborts the phase.
	OnFatal func(err *ClassifyError)
}

// WithRetry runs op under the phase's retry policy. Recoverable failures are
// retried with deterministic exponential backoff until the attempt budget is
// spent; fatal failures abort immediately after invoking OnFatal. The
// returned error is always a *ClassifyError wrapping the last failure.
func WithRetry(ctx context.Context, p Phase, op func() error, hooks Hooks) error {
	policy := PolicyFor(p)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = policy.BaseDelay
	bo.Multiplier = policy.Multiplier
	bo.RandomizationFactor = 0
	bo.MaxInterval = time.Hour
	bo.MaxElapsedTime = 0

	attempt := 0
	totalAttempts := policy.MaxRetries + 1

	operation := func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		cls := Classify(p, err)
		if !cls.Retryable {
			if hooks.OnFatal != nil {
				hooks.OnFatal(cls)
			}
			return backoff.Permanent(cls)
		}
		return cls
	}

	notify := func(err error, delay time.Duration) {
		if hooks.OnRetry == nil {
			return
		}
		cls, ok := err.(*ClassifyError)
		if !ok {
			cls = Classify(p, err)
		}
		hooks.OnRetry(attempt, totalAttempts, cls, delay)
	}

	wrapped := backoff.WithMaxRetries(backoff.WithContext(bo, ctx), uint64(policy.MaxRetries))
	return backoff.RetryNotify(operation, wrapped, notify)
}
