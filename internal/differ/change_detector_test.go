package differ

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessuselesss/bounty-crawl/internal/config"
	"github.com/lessuselesss/bounty-crawl/internal/models"
)

func newTestDetector() *ChangeDetector {
	return NewChangeDetector(config.NewDefaultDiffConfig(), zerolog.Nop())
}

func bounty(id, title string, amount int64) models.Bounty {
	return models.Bounty{
		ID:                     id,
		Title:                  title,
		RewardAmountMinorUnits: amount,
		Currency:               "USD",
		Status:                 models.StatusOpen,
		SourceURL:              "https://example.com/" + id,
	}
}

func TestDetectFirstRunReportsAllAdded(t *testing.T) {
	detector := newTestDetector()
	current := []models.Bounty{
		bounty("acme/widgets#1", "Fix parser", 50000),
		bounty("acme/widgets#2", "Add docs", 25000),
	}

	cs := detector.Detect("res-1", nil, current)

	assert.True(t, cs.IsFirstRun)
	assert.Len(t, cs.Added, 2)
	assert.Empty(t, cs.Removed)
	assert.Empty(t, cs.Updated)
}

func TestDetectPartitionsAddedRemovedUpdated(t *testing.T) {
	detector := newTestDetector()
	previous := &models.EntitySnapshot{
		ResourceID: "res-1",
		RecordedAt: time.Now(),
		Bounties: []models.Bounty{
			bounty("acme/widgets#1", "Fix parser", 50000),
			bounty("acme/widgets#2", "Add docs", 25000),
			bounty("acme/widgets#3", "Old task", 10000),
		},
	}
	updated := bounty("acme/widgets#2", "Add documentation", 25000)
	current := []models.Bounty{
		bounty("acme/widgets#1", "Fix parser", 50000),
		updated,
		bounty("acme/widgets#4", "New task", 75000),
	}

	cs := detector.Detect("res-1", previous, current)

	require.Len(t, cs.Added, 1)
	assert.Equal(t, "acme/widgets#4", cs.Added[0].ID)
	require.Len(t, cs.Removed, 1)
	assert.Equal(t, "acme/widgets#3", cs.Removed[0].ID)
	require.Len(t, cs.Updated, 1)
	assert.Equal(t, "acme/widgets#2", cs.Updated[0].New.ID)
	assert.Equal(t, []string{"title"}, cs.Updated[0].Fields)
	assert.False(t, cs.IsFirstRun)

	// No bounty may appear in more than one partition.
	seen := map[string]int{}
	for _, b := range cs.Added {
		seen[b.ID]++
	}
	for _, b := range cs.Removed {
		seen[b.ID]++
	}
	for _, u := range cs.Updated {
		seen[u.New.ID]++
	}
	for id, count := range seen {
		assert.Equal(t, 1, count, "bounty %s appears in multiple partitions", id)
	}
}

func TestDetectIsIdempotent(t *testing.T) {
	detector := newTestDetector()
	previous := &models.EntitySnapshot{
		ResourceID: "res-1",
		Bounties:   []models.Bounty{bounty("acme/widgets#1", "Fix parser", 50000)},
	}
	current := []models.Bounty{
		bounty("acme/widgets#1", "Fix parser", 60000),
		bounty("acme/widgets#2", "New", 10000),
	}

	first := detector.Detect("res-1", previous, current)
	second := detector.Detect("res-1", previous, current)

	assert.Equal(t, first, second)
}

func TestDetectAmountChangeListsOnlyAmountField(t *testing.T) {
	detector := newTestDetector()
	old := bounty("acme/widgets#7", "Improve cache", 50000)
	updated := old
	updated.RewardAmountMinorUnits = 75000

	previous := &models.EntitySnapshot{ResourceID: "res-1", Bounties: []models.Bounty{old}}
	cs := detector.Detect("res-1", previous, []models.Bounty{updated})

	assert.Empty(t, cs.Added)
	assert.Empty(t, cs.Removed)
	require.Len(t, cs.Updated, 1)
	assert.Equal(t, []string{"amount"}, cs.Updated[0].Fields)
	assert.Equal(t, int64(50000), cs.Updated[0].Old.RewardAmountMinorUnits)
	assert.Equal(t, int64(75000), cs.Updated[0].New.RewardAmountMinorUnits)
}

func TestDetectNoChangesYieldsEmptySet(t *testing.T) {
	detector := newTestDetector()
	items := []models.Bounty{bounty("acme/widgets#1", "Fix parser", 50000)}
	previous := &models.EntitySnapshot{ResourceID: "res-1", Bounties: items}

	cs := detector.Detect("res-1", previous, items)

	assert.True(t, cs.IsEmpty())
}

func TestChangedFieldsCoversEveryComparableField(t *testing.T) {
	old := bounty("acme/widgets#1", "Title", 100)
	old.Tags = []string{"go"}

	updated := old
	updated.Title = "Other"
	updated.RewardAmountMinorUnits = 200
	updated.Currency = "EUR"
	updated.Status = models.StatusClosed
	updated.Tags = []string{"rust"}
	updated.SourceURL = "https://example.com/other"

	fields := changedFields(old, updated)
	assert.ElementsMatch(t, []string{"title", "amount", "currency", "status", "tags", "sourceUrl"}, fields)
}

func TestAttachTextDiffOnlyForNonEmptySets(t *testing.T) {
	detector := newTestDetector()

	empty := models.ChangeSet{ResourceID: "res-1"}
	detector.AttachTextDiff(&empty, []byte("a"), []byte("b"))
	assert.Empty(t, empty.TextDiff)

	changed := models.ChangeSet{ResourceID: "res-1", Added: []models.Bounty{bounty("x#1", "t", 1)}}
	detector.AttachTextDiff(&changed, []byte("old line\n"), []byte("new line\n"))
	assert.NotEmpty(t, changed.TextDiff)
}
