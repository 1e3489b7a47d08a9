// Package scheduler decides what kind of scan runs next and keeps the scan
// history that decision depends on.
package scheduler

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/lessuselesss/bounty-crawl/internal/common"
	"github.com/lessuselesss/bounty-crawl/internal/models"
)

// HistoryStore records one row per scan run in a local sqlite database. The
// calendar full-scan trigger reads the last completed full scan from here.
type HistoryStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewHistoryStore opens (creating if needed) the history database and
// ensures the schema exists.
func NewHistoryStore(dbPath string, logger zerolog.Logger) (*HistoryStore, error) {
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, common.WrapError(err, fmt.Sprintf("failed to create scheduler database directory %s", dbDir))
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, common.WrapError(err, fmt.Sprintf("sql.Open failed for %s", dbPath))
	}

	store := &HistoryStore{
		db:     db,
		logger: logger.With().Str("component", "ScanHistoryStore").Logger(),
	}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, common.WrapError(err, "failed to initialize scan history schema")
	}

	store.logger.Info().Str("db_path", dbPath).Msg("Scan history store initialized")
	return store, nil
}

// Close closes the database connection.
func (hs *HistoryStore) Close() error {
	if hs.db != nil {
		return hs.db.Close()
	}
	return nil
}

func (hs *HistoryStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS scan_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT UNIQUE,
		scan_kind TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		ended_at INTEGER,
		status TEXT NOT NULL,
		resources_total INTEGER DEFAULT 0,
		resources_changed INTEGER DEFAULT 0,
		resources_errored INTEGER DEFAULT 0,
		resources_skipped INTEGER DEFAULT 0
	);
	`
	_, err := hs.db.Exec(query)
	return err
}

// RecordStart inserts a new run with status "started" and returns the row id
// used to record completion later.
func (hs *HistoryStore) RecordStart(runID string, kind models.ScanKind, startedAt time.Time, totalResources int) (int64, error) {
	query := `INSERT INTO scan_history (run_id, scan_kind, started_at, status, resources_total) VALUES (?, ?, ?, ?, ?)`
	result, err := hs.db.Exec(query, runID, string(kind), startedAt.UnixNano(), "started", totalResources)
	if err != nil {
		return 0, common.WrapError(err, "failed to insert scan start record")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, common.WrapError(err, "failed to get scan history insert id")
	}
	hs.logger.Info().Int64("db_id", id).Str("run_id", runID).Str("scan_kind", string(kind)).Msg("Recorded scan start")
	return id, nil
}

// RecordCompletion fills in the run's end time, final status and counters.
func (hs *HistoryStore) RecordCompletion(id int64, summary *models.RunSummary) error {
	query := `UPDATE scan_history SET ended_at = ?, status = ?, resources_changed = ?, resources_errored = ?, resources_skipped = ? WHERE id = ?`
	_, err := hs.db.Exec(query,
		summary.EndedAt.UnixNano(),
		string(summary.Status),
		summary.Changed,
		summary.Errored,
		summary.Skipped,
		id,
	)
	if err != nil {
		return common.WrapError(err, fmt.Sprintf("failed to update scan completion for id %d", id))
	}
	hs.logger.Info().Int64("db_id", id).Str("status", string(summary.Status)).Msg("Recorded scan completion")
	return nil
}

// LastFullScanTime returns the start time of the most recent completed full
// scan, or nil when none exists yet.
func (hs *HistoryStore) LastFullScanTime() (*time.Time, error) {
	query := `SELECT started_at FROM scan_history WHERE scan_kind = ? AND status != ? ORDER BY started_at DESC LIMIT 1`
	var startedAt int64
	err := hs.db.QueryRow(query, string(models.ScanKindFull), "started").Scan(&startedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, common.WrapError(err, "failed to query last full scan time")
	}
	ts := time.Unix(0, startedAt).UTC()
	return &ts, nil
}
