package scheduler

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessuselesss/bounty-crawl/internal/config"
	"github.com/lessuselesss/bounty-crawl/internal/models"
)

func newTestHistoryStore(t *testing.T) *HistoryStore {
	t.Helper()
	store, err := NewHistoryStore(filepath.Join(t.TempDir(), "scans.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestScheduler(t *testing.T, history *HistoryStore) *Scheduler {
	t.Helper()
	return NewScheduler(config.SchedulerConfig{FullScanIntervalDays: 7}, history, zerolog.Nop())
}

func recordCompletedFullScan(t *testing.T, history *HistoryStore, runID string, startedAt time.Time) {
	t.Helper()
	id, err := history.RecordStart(runID, models.ScanKindFull, startedAt, 3)
	require.NoError(t, err)
	require.NoError(t, history.RecordCompletion(id, &models.RunSummary{
		RunID:    runID,
		ScanKind: models.ScanKindFull,
		EndedAt:  startedAt.Add(time.Minute),
		Status:   models.RunStatusSuccess,
	}))
}

func TestDecideScanKindFullWhenNoHistory(t *testing.T) {
	s := newTestScheduler(t, newTestHistoryStore(t))
	assert.Equal(t, models.ScanKindFull, s.DecideScanKind(time.Now().UTC()))
}

func TestDecideScanKindTargetedWithinInterval(t *testing.T) {
	history := newTestHistoryStore(t)
	now := time.Now().UTC()
	recordCompletedFullScan(t, history, "run-1", now.Add(-24*time.Hour))

	s := newTestScheduler(t, history)
	assert.Equal(t, models.ScanKindTargeted, s.DecideScanKind(now))
}

func TestDecideScanKindFullAfterIntervalElapses(t *testing.T) {
	history := newTestHistoryStore(t)
	now := time.Now().UTC()
	recordCompletedFullScan(t, history, "run-1", now.Add(-8*24*time.Hour))

	s := newTestScheduler(t, history)
	assert.Equal(t, models.ScanKindFull, s.DecideScanKind(now))
}

func TestDecideScanKindIgnoresUnfinishedFullScans(t *testing.T) {
	history := newTestHistoryStore(t)
	now := time.Now().UTC()
	// Started but never completed: must not count as a full scan.
	_, err := history.RecordStart("run-crashed", models.ScanKindFull, now.Add(-time.Hour), 3)
	require.NoError(t, err)

	s := newTestScheduler(t, history)
	assert.Equal(t, models.ScanKindFull, s.DecideScanKind(now))
}

func TestLastFullScanTimeRoundTrip(t *testing.T) {
	history := newTestHistoryStore(t)
	startedAt := time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC)
	recordCompletedFullScan(t, history, "run-1", startedAt)

	got, err := history.LastFullScanTime()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, startedAt, *got)
}

func testResources() []config.WatchedResource {
	return []config.WatchedResource{
		{ID: "res-critical", Endpoint: "https://a.example/board", Tier: config.TierCritical, PollIntervalSeconds: 900},
		{ID: "res-active", Endpoint: "https://b.example/board", Tier: config.TierActive, PollIntervalSeconds: 3600},
		{ID: "res-background", Endpoint: "https://c.example/board", Tier: config.TierBackground, PollIntervalSeconds: 86400},
	}
}

func TestSelectResourcesFullTakesEverything(t *testing.T) {
	s := newTestScheduler(t, newTestHistoryStore(t))
	resources := testResources()

	selected := s.SelectResources(models.ScanKindFull, resources, nil, nil, time.Now().UTC())
	assert.Equal(t, resources, selected)
}

func TestSelectResourcesTargetedHonorsPollIntervals(t *testing.T) {
	s := newTestScheduler(t, newTestHistoryStore(t))
	now := time.Now().UTC()
	lastChecked := map[string]time.Time{
		"res-critical":   now.Add(-30 * time.Minute), // 15m interval elapsed
		"res-active":     now.Add(-10 * time.Minute), // 1h interval not elapsed
		"res-background": now.Add(-10 * time.Minute), // 24h interval not elapsed
	}

	selected := s.SelectResources(models.ScanKindTargeted, testResources(), lastChecked, nil, now)
	require.Len(t, selected, 1)
	assert.Equal(t, "res-critical", selected[0].ID)
}

func TestSelectResourcesIncludesForcedAndNeverChecked(t *testing.T) {
	s := newTestScheduler(t, newTestHistoryStore(t))
	now := time.Now().UTC()
	lastChecked := map[string]time.Time{
		"res-critical": now.Add(-time.Minute),
		"res-active":   now.Add(-time.Minute),
		// res-background never checked.
	}
	forced := map[string]bool{"res-active": true}

	selected := s.SelectResources(models.ScanKindTargeted, testResources(), lastChecked, forced, now)
	require.Len(t, selected, 2)
	assert.Equal(t, "res-active", selected[0].ID)
	assert.Equal(t, "res-background", selected[1].ID)
}
