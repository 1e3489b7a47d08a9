package datastore

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"

	"github.com/lessuselesss/bounty-crawl/internal/common"
	"github.com/lessuselesss/bounty-crawl/internal/models"
)

// BountyRecord is the flat parquet row shape for one bounty within an
// archived snapshot. Tags are joined with "," since the set is normalized.
type BountyRecord struct {
	ResourceID  string    `parquet:"resource_id,zstd"`
	RecordedAt  time.Time `parquet:"recorded_at,zstd"`
	BountyID    string    `parquet:"bounty_id,zstd"`
	Title       string    `parquet:"title,zstd,optional"`
	AmountMinor int64     `parquet:"amount_minor,zstd"`
	Currency    string    `parquet:"currency,zstd,optional"`
	Status      string    `parquet:"status,zstd"`
	Tags        string    `parquet:"tags,zstd,optional"`
	SourceURL   string    `parquet:"source_url,zstd,optional"`
	CreatedAt   time.Time `parquet:"created_at,zstd"`
	UpdatedAt   time.Time `parquet:"updated_at,zstd"`
}

// SnapshotStore archives entity snapshots as one parquet file per resource,
// overwritten on every successful extraction. The previous snapshot read back
// from here is the old side of a full-mode diff.
type SnapshotStore struct {
	baseDir     string
	compression string
	logger      zerolog.Logger
}

// NewSnapshotStore creates a snapshot store rooted at baseDir.
func NewSnapshotStore(baseDir, compression string, logger zerolog.Logger) (*SnapshotStore, error) {
	if baseDir == "" {
		return nil, common.NewValidationError("snapshot_dir", baseDir, "snapshot directory cannot be empty")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, common.WrapError(err, "failed to create snapshot directory")
	}
	return &SnapshotStore{
		baseDir:     baseDir,
		compression: compression,
		logger:      logger.With().Str("component", "SnapshotStore").Logger(),
	}, nil
}

// snapshotPath keeps one file per resource; resource ids are path-safe
// handles by construction but slashes are flattened defensively.
func (ss *SnapshotStore) snapshotPath(resourceID string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(resourceID)
	return filepath.Join(ss.baseDir, safe+".parquet")
}

func (ss *SnapshotStore) compressionOption() parquet.WriterOption {
	switch strings.ToLower(ss.compression) {
	case "gzip":
		return parquet.Compression(&parquet.Gzip)
	case "snappy":
		return parquet.Compression(&parquet.Snappy)
	case "none":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Zstd)
	}
}

// Save archives the snapshot, replacing the previous one for the resource.
// The write goes through a temp file and rename so a crash mid-write cannot
// destroy the previous snapshot.
func (ss *SnapshotStore) Save(snapshot *models.EntitySnapshot) error {
	if snapshot == nil || snapshot.ResourceID == "" {
		return common.NewValidationError("snapshot", snapshot, "snapshot and resource id must be set")
	}

	finalPath := ss.snapshotPath(snapshot.ResourceID)
	tmpPath := finalPath + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return common.NewPersistenceError(snapshot.ResourceID, "create snapshot file", err)
	}

	writer := parquet.NewGenericWriter[BountyRecord](file, ss.compressionOption())
	records := toRecords(snapshot)
	if len(records) > 0 {
		if _, err := writer.Write(records); err != nil {
			_ = file.Close()
			_ = os.Remove(tmpPath)
			return common.NewPersistenceError(snapshot.ResourceID, "write snapshot records", err)
		}
	}
	if err := writer.Close(); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return common.NewPersistenceError(snapshot.ResourceID, "close snapshot writer", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return common.NewPersistenceError(snapshot.ResourceID, "close snapshot file", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return common.NewPersistenceError(snapshot.ResourceID, "rename snapshot file", err)
	}

	ss.logger.Debug().
		Str("resource_id", snapshot.ResourceID).
		Int("bounties", len(snapshot.Bounties)).
		Msg("Snapshot archived")
	return nil
}

// Load returns the last archived snapshot for a resource, or nil when none
// exists yet (first observation).
func (ss *SnapshotStore) Load(resourceID string) (*models.EntitySnapshot, error) {
	path := ss.snapshotPath(resourceID)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, common.NewPersistenceError(resourceID, "open snapshot file", err)
	}
	defer file.Close()

	reader := parquet.NewGenericReader[BountyRecord](file)
	defer reader.Close()

	var records []BountyRecord
	for {
		batch := make([]BountyRecord, 128)
		n, err := reader.Read(batch)
		if n > 0 {
			records = append(records, batch[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, common.NewPersistenceError(resourceID, "read snapshot records", err)
		}
	}

	return fromRecords(resourceID, records), nil
}

// Delete removes the archived snapshot for a retired resource.
func (ss *SnapshotStore) Delete(resourceID string) error {
	if err := os.Remove(ss.snapshotPath(resourceID)); err != nil && !os.IsNotExist(err) {
		return common.NewPersistenceError(resourceID, "delete snapshot file", err)
	}
	return nil
}

func toRecords(snapshot *models.EntitySnapshot) []BountyRecord {
	records := make([]BountyRecord, 0, len(snapshot.Bounties))
	for _, b := range snapshot.Bounties {
		records = append(records, BountyRecord{
			ResourceID:  snapshot.ResourceID,
			RecordedAt:  snapshot.RecordedAt,
			BountyID:    b.ID,
			Title:       b.Title,
			AmountMinor: b.RewardAmountMinorUnits,
			Currency:    b.Currency,
			Status:      string(b.Status),
			Tags:        strings.Join(b.Tags, ","),
			SourceURL:   b.SourceURL,
			CreatedAt:   b.CreatedAt,
			UpdatedAt:   b.UpdatedAt,
		})
	}
	return records
}

func fromRecords(resourceID string, records []BountyRecord) *models.EntitySnapshot {
	snapshot := &models.EntitySnapshot{ResourceID: resourceID}
	for _, rec := range records {
		if snapshot.RecordedAt.IsZero() {
			snapshot.RecordedAt = rec.RecordedAt
		}
		var tags []string
		if rec.Tags != "" {
			tags = strings.Split(rec.Tags, ",")
		}
		snapshot.Bounties = append(snapshot.Bounties, models.Bounty{
			ID:                     rec.BountyID,
			Title:                  rec.Title,
			RewardAmountMinorUnits: rec.AmountMinor,
			Currency:               rec.Currency,
			Status:                 models.BountyStatus(rec.Status),
			Tags:                   tags,
			SourceURL:              rec.SourceURL,
			CreatedAt:              rec.CreatedAt,
			UpdatedAt:              rec.UpdatedAt,
		})
	}
	if snapshot.RecordedAt.IsZero() {
		snapshot.RecordedAt = time.Now().UTC()
	}
	return snapshot
}
