package scheduler

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/lessuselesss/bounty-crawl/internal/config"
	"github.com/lessuselesss/bounty-crawl/internal/models"
)

// Scheduler picks the scan kind and the resource set for the next run.
// Targeted scans respect per-tier poll intervals; the calendar trigger forces
// a full scan on its interval regardless of targeted results.
type Scheduler struct {
	cfg     config.SchedulerConfig
	history *HistoryStore
	logger  zerolog.Logger
}

// NewScheduler creates a scheduler over the given history store.
func NewScheduler(cfg config.SchedulerConfig, history *HistoryStore, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		history: history,
		logger:  logger.With().Str("component", "Scheduler").Logger(),
	}
}

// DecideScanKind returns full when the calendar interval since the last full
// scan has elapsed (or no full scan was ever recorded), targeted otherwise.
func (s *Scheduler) DecideScanKind(now time.Time) models.ScanKind {
	interval := time.Duration(s.cfg.FullScanIntervalDays) * 24 * time.Hour
	if interval <= 0 {
		interval = 7 * 24 * time.Hour
	}

	lastFull, err := s.history.LastFullScanTime()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Could not read last full scan time, forcing full scan")
		return models.ScanKindFull
	}
	if lastFull == nil {
		s.logger.Info().Msg("No previous full scan recorded, forcing full scan")
		return models.ScanKindFull
	}
	if now.Sub(*lastFull) >= interval {
		s.logger.Info().Time("last_full_scan", *lastFull).Msg("Full scan interval elapsed")
		return models.ScanKindFull
	}
	return models.ScanKindTargeted
}

// SelectResources returns the resources due in this run. A full scan takes
// everything. A targeted scan takes resources whose tier poll interval has
// elapsed since their last check, plus any resource in the forced set (from
// cheap-poll hits and coalesced push signals). Resources never checked are
// always due.
func (s *Scheduler) SelectResources(
	kind models.ScanKind,
	resources []config.WatchedResource,
	lastChecked map[string]time.Time,
	forced map[string]bool,
	now time.Time,
) []config.WatchedResource {
	if kind == models.ScanKindFull {
		return resources
	}

	var due []config.WatchedResource
	for _, resource := range resources {
		if forced[resource.ID] {
			due = append(due, resource)
			continue
		}
		checkedAt, seen := lastChecked[resource.ID]
		if !seen {
			due = append(due, resource)
			continue
		}
		interval := time.Duration(resource.EffectivePollInterval()) * time.Second
		if now.Sub(checkedAt) >= interval {
			due = append(due, resource)
		}
	}

	s.logger.Debug().
		Int("total", len(resources)).
		Int("due", len(due)).
		Int("forced", len(forced)).
		Msg("Targeted resource selection completed")
	return due
}
