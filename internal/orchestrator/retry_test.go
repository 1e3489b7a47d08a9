package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lessuselesss/bounty-crawl/internal/config"
)

func TestDelayForDoublesPerAttempt(t *testing.T) {
	rp := NewRetryPolicy(config.RetryConfig{MaxRetries: 3, BaseDelaySecs: 2, MaxDelaySecs: 60})

	assert.Equal(t, 2*time.Second, rp.DelayFor(1))
	assert.Equal(t, 4*time.Second, rp.DelayFor(2))
	assert.Equal(t, 8*time.Second, rp.DelayFor(3))
}

func TestDelayForIsCapped(t *testing.T) {
	rp := NewRetryPolicy(config.RetryConfig{MaxRetries: 10, BaseDelaySecs: 2, MaxDelaySecs: 10})

	assert.Equal(t, 10*time.Second, rp.DelayFor(8))
}

func TestDelayForJitterStaysWithinBounds(t *testing.T) {
	rp := NewRetryPolicy(config.RetryConfig{MaxRetries: 3, BaseDelaySecs: 4, MaxDelaySecs: 30, EnableJitter: true})

	for i := 0; i < 50; i++ {
		delay := rp.DelayFor(1)
		assert.GreaterOrEqual(t, delay, 4*time.Second)
		assert.Less(t, delay, 5*time.Second)
	}
}
