package datastore

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/lessuselesss/bounty-crawl/internal/common"
	"github.com/lessuselesss/bounty-crawl/internal/models"
)

// ChangeLogWriter persists each run's aggregated change set as one JSON
// document under the configured directory. These documents are the handoff to
// the downstream archival stage.
type ChangeLogWriter struct {
	baseDir string
	logger  zerolog.Logger
}

// NewChangeLogWriter creates a writer rooted at baseDir.
func NewChangeLogWriter(baseDir string, logger zerolog.Logger) (*ChangeLogWriter, error) {
	if baseDir == "" {
		return nil, common.NewValidationError("changes_dir", baseDir, "changes directory cannot be empty")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, common.WrapError(err, "failed to create changes directory")
	}
	return &ChangeLogWriter{
		baseDir: baseDir,
		logger:  logger.With().Str("component", "ChangeLogWriter").Logger(),
	}, nil
}

// Write stores the run's change set as run-<run_id>.json, going through a
// temp file and rename so a crash mid-write never leaves a truncated
// document. Empty runs are skipped; the returned path is empty in that case.
func (cw *ChangeLogWriter) Write(changes *models.RunChangeSet) (string, error) {
	if changes == nil || changes.RunID == "" {
		return "", common.NewValidationError("changes", changes, "change set and run id must be set")
	}
	if changes.IsEmpty() {
		cw.logger.Debug().Str("run_id", changes.RunID).Msg("No changes to archive for run")
		return "", nil
	}

	data, err := json.MarshalIndent(changes, "", "  ")
	if err != nil {
		return "", common.NewPersistenceError(changes.RunID, "marshal run change set", err)
	}

	finalPath := filepath.Join(cw.baseDir, "run-"+changes.RunID+".json")
	tmpPath := finalPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return "", common.NewPersistenceError(changes.RunID, "write run change set", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", common.NewPersistenceError(changes.RunID, "rename run change set", err)
	}

	cw.logger.Info().
		Str("run_id", changes.RunID).
		Int("changed_resources", len(changes.Changes)).
		Str("path", finalPath).
		Msg("Run change set archived")
	return finalPath, nil
}
