// Package datastore provides durable storage for fingerprints and entity
// snapshots.
package datastore

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

// FingerprintStore persists one fingerprint row per watched resource in a
// local sqlite database. Timestamps are stored as unix nanoseconds so they
// round-trip exactly.
type FingerprintStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewFingerprintStore opens (creating if needed) the fingerprint database and
// ensures the schema exists.
func NewFingerprintStore(dbPath string, logger zerolog.Logger) (*FingerprintStore, error) {
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, common.WrapError(err, fmt.Sprintf("failed to create fingerprint database directory %s", dbDir))
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, common.WrapError(err, fmt.Sprintf("sql.Open failed for %s", dbPath))
	}

	store := &FingerprintStore{
		db:     db,
		logger: logger.With().Str("component", "FingerprintStore").Logger(),
	}

	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, common.WrapError(err, "failed to initialize fingerprint schema")
	}

	store.logger.Info().Str("db_path", dbPath).Msg("Fingerprint store initialized")
	return store, nil
}

// Close closes the database connection.
func (fs *FingerprintStore) Close() error {
	if fs.db != nil {
		return fs.db.Close()
	}
	return nil
}

func (fs *FingerprintStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS fingerprints (
		resource_id TEXT PRIMARY KEY,
		signature TEXT NOT NULL,
		last_checked_at INTEGER NOT NULL,
		last_changed_at INTEGER,
		entity_count_estimate INTEGER NOT NULL DEFAULT 0,
		etag TEXT NOT NULL DEFAULT '',
		last_modified TEXT NOT NULL DEFAULT '',
		probe_hash TEXT NOT NULL DEFAULT ''
	);
	`
	_, err := fs.db.Exec(query)
	return err
}

// Get returns the fingerprint for a resource, or nil when the resource has
// never been observed. The absence of a fingerprint is not an error.
func (fs *FingerprintStore) Get(resourceID string) (*models.Fingerprint, error) {
	query := `SELECT signature, last_checked_at, last_changed_at, entity_count_estimate, etag, last_modified, probe_hash FROM fingerprints WHERE resource_id = ?`
	row := fs.db.QueryRow(query, resourceID)

	var (
		signature    string
		checkedAt    int64
		changedAt    sql.NullInt64
		entityCount  int
		etag         string
		lastModified string
		probeHash    string
	)
	if err := row.Scan(&signature, &checkedAt, &changedAt, &entityCount, &etag, &lastModified, &probeHash); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, common.NewPersistenceError(resourceID, "get fingerprint", err)
	}

	fp := &models.Fingerprint{
		ResourceID:          resourceID,
		Signature:           signature,
		LastCheckedAt:       time.Unix(0, checkedAt).UTC(),
		EntityCountEstimate: entityCount,
		ETag:                etag,
		LastModified:        lastModified,
		ProbeHash:           probeHash,
	}
	if changedAt.Valid {
		ts := time.Unix(0, changedAt.Int64).UTC()
		fp.LastChangedAt = &ts
	}
	return fp, nil
}

// Upsert writes the fingerprint for a resource, replacing any previous row.
func (fs *FingerprintStore) Upsert(fp *models.Fingerprint) error {
	if fp == nil || fp.ResourceID == "" {
		return common.NewValidationError("fingerprint", fp, "fingerprint and resource id must be set")
	}

	var changedAt sql.NullInt64
	if fp.LastChangedAt != nil {
		changedAt = sql.NullInt64{Int64: fp.LastChangedAt.UnixNano(), Valid: true}
	}

	query := `
	INSERT INTO fingerprints (resource_id, signature, last_checked_at, last_changed_at, entity_count_estimate, etag, last_modified, probe_hash)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(resource_id) DO UPDATE SET
		signature = excluded.signature,
		last_checked_at = excluded.last_checked_at,
		last_changed_at = excluded.last_changed_at,
		entity_count_estimate = excluded.entity_count_estimate,
		etag = excluded.etag,
		last_modified = excluded.last_modified,
		probe_hash = excluded.probe_hash
	`
	if _, err := fs.db.Exec(query, fp.ResourceID, fp.Signature, fp.LastCheckedAt.UnixNano(), changedAt, fp.EntityCountEstimate, fp.ETag, fp.LastModified, fp.ProbeHash); err != nil {
		return common.NewPersistenceError(fp.ResourceID, "upsert fingerprint", err)
	}
	return nil
}

// Delete removes the fingerprint for a retired resource.
func (fs *FingerprintStore) Delete(resourceID string) error {
	if _, err := fs.db.Exec(`DELETE FROM fingerprints WHERE resource_id = ?`, resourceID); err != nil {
		return common.NewPersistenceError(resourceID, "delete fingerprint", err)
	}
	return nil
}

// KnownResourceIDs returns every resource id with a stored fingerprint, used
// to detect resources added to or removed from the watched universe.
func (fs *FingerprintStore) KnownResourceIDs() ([]string, error) {
	rows, err := fs.db.Query(`SELECT resource_id FROM fingerprints ORDER BY resource_id`)
	if err != nil {
		return nil, common.WrapError(err, "failed to list fingerprint resource ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, common.WrapError(err, "failed to scan fingerprint resource id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
