// Package coalescer debounces change signals into deduplicated batches so a
// burst of page edits triggers one downstream dispatch instead of many.
package coalescer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lessuselesss/bounty-crawl/internal/config"
	"github.com/lessuselesss/bounty-crawl/internal/models"
)

// BatchSink receives each emitted batch. Delivery failures are the sink's
// concern; the coalescer resets its window either way, the periodic full
// scan is the safety net for lost batches.
type BatchSink interface {
	Dispatch(ctx context.Context, batch models.PendingChangeBatch) error
}

// Coalescer is a two-state debounce machine: idle, or an open window with a
// quiet deadline. Signals inside an open window extend the quiet deadline up
// to a hard cap measured from when the window opened. State lives in memory
// only.
type Coalescer struct {
	mu             sync.Mutex
	pending        map[string]bool
	windowOpenedAt time.Time
	quietDeadline  time.Time
	open           bool

	quietWindow time.Duration
	maxWindow   time.Duration
	clock       Clock
	sink        BatchSink
	logger      zerolog.Logger
}

// NewCoalescer creates a coalescer. A nil clock selects the system clock.
func NewCoalescer(cfg config.CoalescerConfig, sink BatchSink, clock Clock, logger zerolog.Logger) *Coalescer {
	if clock == nil {
		clock = SystemClock()
	}
	quiet := time.Duration(cfg.QuietWindowSeconds) * time.Second
	if quiet <= 0 {
		quiet = 2 * time.Minute
	}
	maxWin := time.Duration(cfg.MaxWindowSeconds) * time.Second
	if maxWin < quiet {
		maxWin = 5 * quiet
	}
	return &Coalescer{
		pending:     make(map[string]bool),
		quietWindow: quiet,
		maxWindow:   maxWin,
		clock:       clock,
		sink:        sink,
		logger:      logger.With().Str("component", "Coalescer").Logger(),
	}
}

// Signal records a change notification for the resource. The first signal
// opens a window; repeats within the window deduplicate and extend the quiet
// deadline, clamped to the hard maximum.
func (c *Coalescer) Signal(resourceID string) {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		c.open = true
		c.windowOpenedAt = now
		c.logger.Debug().Str("resource_id", resourceID).Msg("Debounce window opened")
	}
	c.pending[resourceID] = true

	deadline := now.Add(c.quietWindow)
	if hardCap := c.windowOpenedAt.Add(c.maxWindow); deadline.After(hardCap) {
		deadline = hardCap
	}
	c.quietDeadline = deadline
}

// PendingCount returns the number of distinct resources awaiting emission.
func (c *Coalescer) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Tick checks the window deadlines and emits the batch when either the quiet
// period elapsed or the hard cap was reached. Safe to call concurrently with
// Signal.
func (c *Coalescer) Tick(ctx context.Context) {
	now := c.clock.Now()

	c.mu.Lock()
	if !c.open || (now.Before(c.quietDeadline) && now.Before(c.windowOpenedAt.Add(c.maxWindow))) {
		c.mu.Unlock()
		return
	}
	batch := models.PendingChangeBatch{
		ResourceIDs:    make([]string, 0, len(c.pending)),
		WindowOpenedAt: c.windowOpenedAt,
	}
	for resourceID := range c.pending {
		batch.ResourceIDs = append(batch.ResourceIDs, resourceID)
	}
	sort.Strings(batch.ResourceIDs)
	c.pending = make(map[string]bool)
	c.open = false
	c.mu.Unlock()

	c.logger.Info().Int("batch_size", len(batch.ResourceIDs)).Msg("Emitting coalesced change batch")
	if err := c.sink.Dispatch(ctx, batch); err != nil {
		c.logger.Error().Err(err).Int("batch_size", len(batch.ResourceIDs)).Msg("Batch dispatch failed, periodic full scan will recover")
	}
}

// Run drives Tick on a short interval until the context ends.
func (c *Coalescer) Run(ctx context.Context) {
	interval := c.quietWindow / 10
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}
