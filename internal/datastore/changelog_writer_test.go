package datastore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessuselesss/bounty-crawl/internal/models"
)

func newTestChangeLogWriter(t *testing.T) (*ChangeLogWriter, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "changes")
	writer, err := NewChangeLogWriter(dir, zerolog.Nop())
	require.NoError(t, err)
	return writer, dir
}

func TestChangeLogWriterPersistsRunChanges(t *testing.T) {
	writer, dir := newTestChangeLogWriter(t)

	changes := &models.RunChangeSet{
		RunID:       "run-abc",
		GeneratedAt: time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
		Changes: []models.ChangeSet{
			{
				ResourceID: "acme-board",
				Added: []models.Bounty{
					{ID: "b-1", Title: "XSS on login", RewardAmountMinorUnits: 50000, Currency: "USD", Status: models.StatusOpen},
				},
			},
		},
		ResourcesAdded: []string{"acme-board"},
	}

	path, err := writer.Write(changes)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "run-run-abc.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var restored models.RunChangeSet
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, changes.RunID, restored.RunID)
	require.Len(t, restored.Changes, 1)
	assert.Equal(t, "acme-board", restored.Changes[0].ResourceID)
	require.Len(t, restored.Changes[0].Added, 1)
	assert.Equal(t, "b-1", restored.Changes[0].Added[0].ID)
	assert.Equal(t, []string{"acme-board"}, restored.ResourcesAdded)
}

func TestChangeLogWriterSkipsEmptyRuns(t *testing.T) {
	writer, dir := newTestChangeLogWriter(t)

	path, err := writer.Write(&models.RunChangeSet{RunID: "run-empty", GeneratedAt: time.Now().UTC()})
	require.NoError(t, err)
	assert.Empty(t, path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestChangeLogWriterRejectsMissingRunID(t *testing.T) {
	writer, _ := newTestChangeLogWriter(t)

	_, err := writer.Write(&models.RunChangeSet{})
	assert.Error(t, err)

	_, err = writer.Write(nil)
	assert.Error(t, err)
}
