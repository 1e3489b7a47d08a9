package orchestrator

import (
	"sync"
)

// CircuitBreaker tracks consecutive fetch failures per resource within one
// run. Once a resource reaches the threshold it is skipped for the rest of
// the run; breakers are created fresh for every run so a bad cycle never
// poisons the next one.
type CircuitBreaker struct {
	mu        sync.Mutex
	threshold int
	failures  map[string]int
}

// NewCircuitBreaker creates a breaker with the given failure threshold.
// A threshold of zero or below disables the breaker.
func NewCircuitBreaker(threshold int) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		failures:  make(map[string]int),
	}
}

// Allow reports whether the resource may attempt another fetch.
func (cb *CircuitBreaker) Allow(resourceID string) bool {
	if cb.threshold <= 0 {
		return true
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures[resourceID] < cb.threshold
}

// RecordFailure counts one failed fetch attempt for the resource.
func (cb *CircuitBreaker) RecordFailure(resourceID string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures[resourceID]++
}

// RecordSuccess clears the resource's failure count.
func (cb *CircuitBreaker) RecordSuccess(resourceID string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	delete(cb.failures, resourceID)
}

// FailureCount returns the current failure count for the resource.
func (cb *CircuitBreaker) FailureCount(resourceID string) int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures[resourceID]
}
