// Package limiter guards scan runs against memory exhaustion by pausing
// dispatch while usage is above the configured thresholds.
package limiter

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/lessuselesss/bounty-crawl/internal/config"
)

// ResourceLimiter samples process and system memory on an interval and
// reports pressure. The orchestrator consults it before dispatching each
// resource.
type ResourceLimiter struct {
	cfg       config.LimiterConfig
	logger    zerolog.Logger
	mu        sync.RWMutex
	paused    bool
	isRunning bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewResourceLimiter creates a limiter.
func NewResourceLimiter(cfg config.LimiterConfig, logger zerolog.Logger) *ResourceLimiter {
	return &ResourceLimiter{
		cfg:    cfg,
		logger: logger.With().Str("component", "ResourceLimiter").Logger(),
	}
}

// Start begins background sampling. A disabled limiter never pauses.
func (rl *ResourceLimiter) Start() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.isRunning || !rl.cfg.Enabled {
		return
	}
	rl.isRunning = true

	ctx, cancel := context.WithCancel(context.Background())
	rl.cancel = cancel

	rl.wg.Add(1)
	go rl.monitor(ctx)

	rl.logger.Info().
		Int("max_memory_mb", rl.cfg.MaxMemoryMB).
		Float64("max_system_mem_percent", rl.cfg.MaxSystemMemPercent).
		Msg("Resource limiter started")
}

// Stop halts background sampling.
func (rl *ResourceLimiter) Stop() {
	rl.mu.Lock()
	if !rl.isRunning {
		rl.mu.Unlock()
		return
	}
	rl.isRunning = false
	cancel := rl.cancel
	rl.mu.Unlock()

	cancel()
	rl.wg.Wait()
	rl.logger.Info().Msg("Resource limiter stopped")
}

// Wait blocks until memory pressure clears or the context ends. It returns
// immediately when the limiter is disabled or not under pressure.
func (rl *ResourceLimiter) Wait(ctx context.Context) {
	for {
		rl.mu.RLock()
		paused := rl.paused
		rl.mu.RUnlock()
		if !paused {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// Paused reports whether dispatch is currently held back.
func (rl *ResourceLimiter) Paused() bool {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.paused
}

func (rl *ResourceLimiter) monitor(ctx context.Context) {
	defer rl.wg.Done()

	interval := time.Duration(rl.cfg.CheckIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.sample()
		}
	}
}

func (rl *ResourceLimiter) sample() {
	overLimit := false

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	processMB := int(m.Alloc / 1024 / 1024)
	if rl.cfg.MaxMemoryMB > 0 && processMB > rl.cfg.MaxMemoryMB {
		overLimit = true
		rl.logger.Warn().
			Int("process_mb", processMB).
			Int("limit_mb", rl.cfg.MaxMemoryMB).
			Msg("Process memory over limit, pausing dispatch")
	}

	if vmem, err := mem.VirtualMemory(); err == nil {
		if rl.cfg.MaxSystemMemPercent > 0 && vmem.UsedPercent > rl.cfg.MaxSystemMemPercent {
			overLimit = true
			rl.logger.Warn().
				Float64("system_used_percent", vmem.UsedPercent).
				Float64("limit_percent", rl.cfg.MaxSystemMemPercent).
				Msg("System memory over limit, pausing dispatch")
		}
	}

	rl.mu.Lock()
	wasPaused := rl.paused
	rl.paused = overLimit
	rl.mu.Unlock()

	if wasPaused && !overLimit {
		rl.logger.Info().Msg("Memory pressure cleared, resuming dispatch")
	}
	if overLimit {
		runtime.GC()
	}
}
