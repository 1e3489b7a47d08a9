package coalescer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessuselesss/bounty-crawl/internal/config"
	"github.com/lessuselesss/bounty-crawl/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (fc *fakeClock) Now() time.Time {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.now
}

func (fc *fakeClock) Advance(d time.Duration) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.now = fc.now.Add(d)
}

type captureSink struct {
	mu      sync.Mutex
	batches []models.PendingChangeBatch
}

func (cs *captureSink) Dispatch(_ context.Context, batch models.PendingChangeBatch) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.batches = append(cs.batches, batch)
	return nil
}

func (cs *captureSink) all() []models.PendingChangeBatch {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return append([]models.PendingChangeBatch(nil), cs.batches...)
}

func newTestCoalescer(sink BatchSink, clock Clock) *Coalescer {
	cfg := config.CoalescerConfig{QuietWindowSeconds: 120, MaxWindowSeconds: 600}
	return NewCoalescer(cfg, sink, clock, zerolog.Nop())
}

func TestBurstOfSignalsEmitsOneDedupedBatch(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	sink := &captureSink{}
	c := newTestCoalescer(sink, clock)

	c.Signal("res-a")
	c.Signal("res-b")
	c.Signal("res-a")
	c.Signal("res-a")
	assert.Equal(t, 2, c.PendingCount())

	// Still inside the quiet window: nothing emitted.
	clock.Advance(60 * time.Second)
	c.Tick(context.Background())
	assert.Empty(t, sink.all())

	clock.Advance(121 * time.Second)
	c.Tick(context.Background())

	batches := sink.all()
	require.Len(t, batches, 1)
	assert.Equal(t, []string{"res-a", "res-b"}, batches[0].ResourceIDs)
	assert.Equal(t, 0, c.PendingCount())
}

func TestSignalsExtendQuietWindow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	sink := &captureSink{}
	c := newTestCoalescer(sink, clock)

	c.Signal("res-a")
	for i := 0; i < 3; i++ {
		clock.Advance(100 * time.Second)
		c.Signal("res-a")
		c.Tick(context.Background())
		assert.Empty(t, sink.all(), "window must stay open while signals keep arriving")
	}

	clock.Advance(121 * time.Second)
	c.Tick(context.Background())
	assert.Len(t, sink.all(), 1)
}

func TestMaxWindowCapsExtension(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	sink := &captureSink{}
	c := newTestCoalescer(sink, clock)

	c.Signal("res-a")
	// Keep signalling every 60s: the quiet deadline keeps moving but the
	// hard cap at 600s from window open must force emission.
	for i := 0; i < 11; i++ {
		clock.Advance(60 * time.Second)
		c.Signal("res-a")
		c.Tick(context.Background())
	}

	require.NotEmpty(t, sink.all(), "hard max window must force emission despite continuous signals")
}

func TestEmissionResetsForNextWindow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	sink := &captureSink{}
	c := newTestCoalescer(sink, clock)

	c.Signal("res-a")
	clock.Advance(121 * time.Second)
	c.Tick(context.Background())
	require.Len(t, sink.all(), 1)

	c.Signal("res-b")
	clock.Advance(121 * time.Second)
	c.Tick(context.Background())

	batches := sink.all()
	require.Len(t, batches, 2)
	assert.Equal(t, []string{"res-b"}, batches[1].ResourceIDs)
}

func TestTickWhileIdleDoesNothing(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	sink := &captureSink{}
	c := newTestCoalescer(sink, clock)

	clock.Advance(time.Hour)
	c.Tick(context.Background())
	assert.Empty(t, sink.all())
}
