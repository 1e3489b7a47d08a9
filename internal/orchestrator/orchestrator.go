// Package orchestrator coordinates fetch attempts across the configured
// backend chain with retries, per-resource circuit breaking, and a bounded
// worker pool.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lessuselesss/bounty-crawl/internal/common"
	"github.com/lessuselesss/bounty-crawl/internal/config"
	"github.com/lessuselesss/bounty-crawl/internal/datastore"
	"github.com/lessuselesss/bounty-crawl/internal/fetcher"
)

// ResourceHandler receives the outcome of each resource's fetch. Exactly one
// call is made per dispatched resource; fetchErr is nil on success,
// common.ErrNotModified when a conditional GET reported no change, and
// common.ErrRunDeadline for resources never started before the run expired.
type ResourceHandler func(ctx context.Context, req fetcher.FetchRequest, content *fetcher.RawContent, fetchErr error)

// DispatchGate lets an external guard (the resource limiter) hold back
// worker dispatch while the system is under pressure.
type DispatchGate interface {
	Wait(ctx context.Context)
}

// Orchestrator drives the fetch phase of a run.
type Orchestrator struct {
	cfg      config.OrchestratorConfig
	backends []fetcher.Fetcher
	retry    *RetryPolicy
	mutexes  *datastore.ResourceMutexManager
	gate     DispatchGate
	logger   zerolog.Logger
}

// OrchestratorBuilder assembles an Orchestrator.
type OrchestratorBuilder struct {
	cfg      config.OrchestratorConfig
	backends []fetcher.Fetcher
	gate     DispatchGate
	logger   zerolog.Logger
}

// NewOrchestratorBuilder creates a builder with the given logger.
func NewOrchestratorBuilder(logger zerolog.Logger) *OrchestratorBuilder {
	return &OrchestratorBuilder{logger: logger}
}

// WithConfig sets the orchestrator configuration.
func (b *OrchestratorBuilder) WithConfig(cfg config.OrchestratorConfig) *OrchestratorBuilder {
	b.cfg = cfg
	return b
}

// WithBackends sets the fetch backends in preference order.
func (b *OrchestratorBuilder) WithBackends(backends []fetcher.Fetcher) *OrchestratorBuilder {
	b.backends = backends
	return b
}

// WithDispatchGate sets an optional guard consulted before each dispatch.
func (b *OrchestratorBuilder) WithDispatchGate(gate DispatchGate) *OrchestratorBuilder {
	b.gate = gate
	return b
}

// Build validates and constructs the Orchestrator.
func (b *OrchestratorBuilder) Build() (*Orchestrator, error) {
	if len(b.backends) == 0 {
		return nil, common.NewError("orchestrator requires at least one fetch backend")
	}
	return &Orchestrator{
		cfg:      b.cfg,
		backends: b.backends,
		retry:    NewRetryPolicy(b.cfg.Retry),
		mutexes:  datastore.NewResourceMutexManager(b.cfg.MutexStripes),
		gate:     b.gate,
		logger:   b.logger.With().Str("component", "Orchestrator").Logger(),
	}, nil
}

// FetchAll dispatches the requests through a bounded worker pool. The handler
// is invoked exactly once per request. When the run deadline expires,
// undispatched resources are reported with common.ErrRunDeadline instead of
// being silently dropped.
func (o *Orchestrator) FetchAll(ctx context.Context, requests []fetcher.FetchRequest, handler ResourceHandler) {
	runCtx := ctx
	var cancel context.CancelFunc
	if o.cfg.RunTimeoutSeconds > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(o.cfg.RunTimeoutSeconds)*time.Second)
		defer cancel()
	}

	breaker := NewCircuitBreaker(o.cfg.CircuitBreakerThreshold)

	maxWorkers := o.cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup

	dispatchDelay := time.Duration(o.cfg.DispatchDelayMillis) * time.Millisecond

	for i, req := range requests {
		if o.gate != nil {
			o.gate.Wait(runCtx)
		}
		if runCtx.Err() != nil {
			o.logger.Warn().
				Int("remaining", len(requests)-i).
				Msg("Run deadline expired, skipping remaining resources")
			for _, skipped := range requests[i:] {
				handler(runCtx, skipped, nil, common.ErrRunDeadline)
			}
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(req fetcher.FetchRequest) {
			defer wg.Done()
			defer func() { <-sem }()

			o.mutexes.Lock(req.ResourceID)
			defer o.mutexes.Unlock(req.ResourceID)

			content, err := o.fetchWithRetry(runCtx, req, breaker)
			handler(runCtx, req, content, err)
		}(req)

		if dispatchDelay > 0 && i < len(requests)-1 {
			select {
			case <-time.After(dispatchDelay):
			case <-runCtx.Done():
			}
		}
	}

	wg.Wait()
}

// fetchWithRetry walks the backend chain in preference order. Each backend
// spends its full retry budget with backoff before the chain advances to the
// next one, so a transient failure of the preferred backend is retried there
// instead of falling straight through to the last resort. ErrNotModified and
// an open circuit breaker short-circuit the chain.
func (o *Orchestrator) fetchWithRetry(ctx context.Context, req fetcher.FetchRequest, breaker *CircuitBreaker) (*fetcher.RawContent, error) {
	var lastErr error

	for _, backend := range o.backends {
		content, err := o.tryBackend(ctx, req, backend, breaker, lastErr)
		if err == nil {
			return content, nil
		}
		if errors.Is(err, common.ErrNotModified) ||
			errors.Is(err, common.ErrCircuitOpen) ||
			errors.Is(err, common.ErrRunDeadline) {
			return nil, err
		}
		lastErr = err
		o.logger.Debug().
			Err(err).
			Str("resource_id", req.ResourceID).
			Str("backend", backend.Name()).
			Msg("Backend exhausted, trying next")
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = common.NewError("no fetch backend produced a result")
	}
	return nil, lastErr
}

// tryBackend runs one backend's retry loop. Every failed attempt feeds the
// circuit breaker; once the breaker opens the resource is abandoned for the
// rest of the run no matter where in the chain the failures accumulated.
func (o *Orchestrator) tryBackend(ctx context.Context, req fetcher.FetchRequest, backend fetcher.Fetcher, breaker *CircuitBreaker, prevErr error) (*fetcher.RawContent, error) {
	lastErr := prevErr

	for attempt := 0; attempt <= o.retry.MaxRetries(); attempt++ {
		if !breaker.Allow(req.ResourceID) {
			o.logger.Warn().
				Str("resource_id", req.ResourceID).
				Int("failures", breaker.FailureCount(req.ResourceID)).
				Msg("Circuit breaker open, abandoning resource for this run")
			if lastErr != nil {
				return nil, common.WrapError(common.ErrCircuitOpen, "last error: "+lastErr.Error())
			}
			return nil, common.ErrCircuitOpen
		}

		if attempt > 0 {
			delay := o.retry.DelayFor(attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, common.WrapError(common.ErrRunDeadline, "retry wait aborted")
			}
		}

		content, err := backend.Fetch(ctx, req)
		if err == nil {
			breaker.RecordSuccess(req.ResourceID)
			o.logger.Debug().
				Str("resource_id", req.ResourceID).
				Str("backend", backend.Name()).
				Msg("Fetch succeeded")
			return content, nil
		}
		if errors.Is(err, common.ErrNotModified) {
			breaker.RecordSuccess(req.ResourceID)
			return nil, err
		}

		breaker.RecordFailure(req.ResourceID)
		lastErr = err
		o.logger.Warn().
			Err(err).
			Str("resource_id", req.ResourceID).
			Str("backend", backend.Name()).
			Int("attempt", attempt+1).
			Msg("Fetch attempt failed")

		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}
