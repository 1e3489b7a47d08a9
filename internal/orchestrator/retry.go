package orchestrator

import (
	"math"
	"math/rand"
	"time"

	"github.com/lessuselesss/bounty-crawl/internal/config"
)

// RetryPolicy computes exponential backoff delays between failed fetch
// attempts. Jitter spreads retries so resources failing together do not
// hammer the upstream in lockstep.
type RetryPolicy struct {
	maxRetries   int
	baseDelay    time.Duration
	maxDelay     time.Duration
	enableJitter bool
}

// NewRetryPolicy builds a policy from configuration.
func NewRetryPolicy(cfg config.RetryConfig) *RetryPolicy {
	return &RetryPolicy{
		maxRetries:   cfg.MaxRetries,
		baseDelay:    time.Duration(cfg.BaseDelaySecs) * time.Second,
		maxDelay:     time.Duration(cfg.MaxDelaySecs) * time.Second,
		enableJitter: cfg.EnableJitter,
	}
}

// MaxRetries returns the number of retries allowed after the first attempt.
func (rp *RetryPolicy) MaxRetries() int {
	return rp.maxRetries
}

// DelayFor returns the backoff delay before the given retry attempt.
// Attempt numbering starts at 1 for the first retry.
func (rp *RetryPolicy) DelayFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := time.Duration(float64(rp.baseDelay) * math.Pow(2, float64(attempt-1)))
	if rp.maxDelay > 0 && delay > rp.maxDelay {
		delay = rp.maxDelay
	}
	if rp.enableJitter && delay >= 4 {
		// Up to 25% random extra so concurrent retries fan out.
		jitter := time.Duration(rand.Int63n(int64(delay) / 4))
		delay += jitter
		if rp.maxDelay > 0 && delay > rp.maxDelay {
			delay = rp.maxDelay
		}
	}
	return delay
}
