package config

// OrchestratorConfig controls fetch fallback, retry, circuit breaking and
// worker concurrency.
type OrchestratorConfig struct {
	// MaxWorkers bounds concurrent per-resource fetches for the whole run.
	MaxWorkers int `json:"max_workers,omitempty" yaml:"max_workers,omitempty" validate:"omitempty,min=1,max=32"`
	// DispatchDelayMillis is the fixed pause between worker dispatches, to
	// avoid bursts against any single upstream.
	DispatchDelayMillis int `json:"dispatch_delay_millis,omitempty" yaml:"dispatch_delay_millis,omitempty" validate:"omitempty,min=0"`
	// RunTimeoutSeconds bounds the whole run. Zero disables the deadline.
	RunTimeoutSeconds int         `json:"run_timeout_seconds,omitempty" yaml:"run_timeout_seconds,omitempty" validate:"omitempty,min=1"`
	Retry             RetryConfig `json:"retry,omitempty" yaml:"retry,omitempty"`
	// CircuitBreakerThreshold is the number of consecutive whole-chain
	// failures after which a resource is skipped for the rest of the run.
	CircuitBreakerThreshold int `json:"circuit_breaker_threshold,omitempty" yaml:"circuit_breaker_threshold,omitempty" validate:"omitempty,min=1,max=20"`
	// MutexStripes is the number of lock stripes guarding per-resource state.
	MutexStripes int `json:"mutex_stripes,omitempty" yaml:"mutex_stripes,omitempty" validate:"omitempty,min=1,max=256"`
}

// RetryConfig defines retry behavior within a single backend.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `json:"max_retries,omitempty" yaml:"max_retries,omitempty" validate:"omitempty,min=0,max=10"`
	// BaseDelaySecs is the base for exponential backoff (base * 2^attempt).
	BaseDelaySecs int `json:"base_delay_secs,omitempty" yaml:"base_delay_secs,omitempty" validate:"omitempty,min=1,max=300"`
	// MaxDelaySecs caps the computed backoff delay.
	MaxDelaySecs int `json:"max_delay_secs,omitempty" yaml:"max_delay_secs,omitempty" validate:"omitempty,min=1,max=3600"`
	// EnableJitter randomizes delays slightly to decorrelate retries.
	EnableJitter bool `json:"enable_jitter" yaml:"enable_jitter"`
}

// NewDefaultOrchestratorConfig creates default orchestrator configuration.
func NewDefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		MaxWorkers:          4,
		DispatchDelayMillis: 250,
		RunTimeoutSeconds:   0,
		Retry: RetryConfig{
			MaxRetries:    2,
			BaseDelaySecs: 2,
			MaxDelaySecs:  30,
			EnableJitter:  true,
		},
		CircuitBreakerThreshold: 3,
		MutexStripes:            16,
	}
}
