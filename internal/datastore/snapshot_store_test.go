package datastore

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessuselesss/bounty-crawl/internal/models"
)

func newTestSnapshotStore(t *testing.T) *SnapshotStore {
	t.Helper()
	store, err := NewSnapshotStore(t.TempDir(), "zstd", zerolog.Nop())
	require.NoError(t, err)
	return store
}

func testSnapshot(resourceID string) *models.EntitySnapshot {
	recordedAt := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	return &models.EntitySnapshot{
		ResourceID: resourceID,
		RecordedAt: recordedAt,
		Bounties: []models.Bounty{
			{
				ID:                     "acme/widgets#12",
				Title:                  "Fix pagination on the rewards list",
				RewardAmountMinorUnits: 50000,
				Currency:               "USD",
				Status:                 models.StatusOpen,
				Tags:                   []string{"bug", "frontend"},
				SourceURL:              "https://github.com/acme/widgets/issues/12",
				CreatedAt:              recordedAt.Add(-48 * time.Hour),
				UpdatedAt:              recordedAt.Add(-2 * time.Hour),
			},
			{
				ID:                     "acme/widgets#15",
				Title:                  "Add CSV export",
				RewardAmountMinorUnits: 120000,
				Currency:               "USD",
				Status:                 models.StatusInProgress,
				SourceURL:              "https://github.com/acme/widgets/issues/15",
				CreatedAt:              recordedAt.Add(-24 * time.Hour),
				UpdatedAt:              recordedAt.Add(-1 * time.Hour),
			},
		},
	}
}

func TestSnapshotSaveLoadRoundTrip(t *testing.T) {
	store := newTestSnapshotStore(t)
	snapshot := testSnapshot("res-1")

	require.NoError(t, store.Save(snapshot))

	loaded, err := store.Load("res-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, snapshot.ResourceID, loaded.ResourceID)
	require.Len(t, loaded.Bounties, 2)
	assert.Equal(t, snapshot.Bounties[0].ID, loaded.Bounties[0].ID)
	assert.Equal(t, snapshot.Bounties[0].Tags, loaded.Bounties[0].Tags)
	assert.Equal(t, snapshot.Bounties[1].RewardAmountMinorUnits, loaded.Bounties[1].RewardAmountMinorUnits)
	assert.Equal(t, snapshot.Bounties[1].Status, loaded.Bounties[1].Status)
}

func TestSnapshotLoadMissingReturnsNil(t *testing.T) {
	store := newTestSnapshotStore(t)

	loaded, err := store.Load("never-archived")
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSnapshotSaveOverwritesPrevious(t *testing.T) {
	store := newTestSnapshotStore(t)
	require.NoError(t, store.Save(testSnapshot("res-1")))

	next := testSnapshot("res-1")
	next.Bounties = next.Bounties[:1]
	require.NoError(t, store.Save(next))

	loaded, err := store.Load("res-1")
	require.NoError(t, err)
	assert.Len(t, loaded.Bounties, 1)
}

func TestSnapshotDeleteIsIdempotent(t *testing.T) {
	store := newTestSnapshotStore(t)
	require.NoError(t, store.Save(testSnapshot("res-1")))

	require.NoError(t, store.Delete("res-1"))
	loaded, err := store.Load("res-1")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	assert.NoError(t, store.Delete("res-1"))
}

func TestSnapshotSaveHandlesEmptyBountyList(t *testing.T) {
	store := newTestSnapshotStore(t)
	empty := &models.EntitySnapshot{ResourceID: "res-empty", RecordedAt: time.Now().UTC()}

	require.NoError(t, store.Save(empty))

	loaded, err := store.Load("res-empty")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Empty(t, loaded.Bounties)
}
