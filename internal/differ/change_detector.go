// Package differ implements cheap-mode signatures and full-mode semantic
// diffing between entity snapshots.
package differ

import (
	"github.com/rs/zerolog"

	"github.com/lessuselesss/bounty-crawl/internal/config"
	"github.com/lessuselesss/bounty-crawl/internal/models"
)

// ChangeDetector computes the semantic diff between the previous and current
// entity snapshots of a resource.
type ChangeDetector struct {
	logger     zerolog.Logger
	textDiffer *TextDiffer
}

// NewChangeDetector creates a detector. The text differ may be nil when
// unified text diffs are disabled.
func NewChangeDetector(cfg config.DiffConfig, logger zerolog.Logger) *ChangeDetector {
	cd := &ChangeDetector{
		logger: logger.With().Str("component", "ChangeDetector").Logger(),
	}
	if cfg.EmitTextDiff {
		cd.textDiffer = NewTextDiffer(cfg)
	}
	return cd
}

// Detect diffs the current bounties against the previous snapshot.
// A nil previous snapshot means the resource was never observed before: every
// entity is reported added and IsFirstRun is set. Detect is pure with respect
// to its inputs; running it twice over the same pair yields the same result.
func (cd *ChangeDetector) Detect(resourceID string, previous *models.EntitySnapshot, current []models.Bounty) models.ChangeSet {
	cs := models.ChangeSet{ResourceID: resourceID}

	if previous == nil {
		cs.IsFirstRun = true
		cs.Added = append(cs.Added, current...)
		cd.logger.Info().
			Str("resource_id", resourceID).
			Int("added", len(cs.Added)).
			Msg("First observation of resource, all entities reported added")
		return cs
	}

	oldByID := make(map[string]models.Bounty, len(previous.Bounties))
	for _, bounty := range previous.Bounties {
		oldByID[bounty.ID] = bounty
	}

	currentIDs := make(map[string]bool, len(current))
	for _, bounty := range current {
		currentIDs[bounty.ID] = true
		old, existed := oldByID[bounty.ID]
		if !existed {
			cs.Added = append(cs.Added, bounty)
			continue
		}
		if fields := changedFields(old, bounty); len(fields) > 0 {
			cs.Updated = append(cs.Updated, models.BountyUpdate{Old: old, New: bounty, Fields: fields})
		}
	}

	for _, bounty := range previous.Bounties {
		if !currentIDs[bounty.ID] {
			cs.Removed = append(cs.Removed, bounty)
		}
	}

	cd.logger.Debug().
		Str("resource_id", resourceID).
		Int("added", len(cs.Added)).
		Int("removed", len(cs.Removed)).
		Int("updated", len(cs.Updated)).
		Msg("Change detection completed")
	return cs
}

// AttachTextDiff adds a unified text diff of the old and new rendered
// content to a non-empty change set.
func (cd *ChangeDetector) AttachTextDiff(cs *models.ChangeSet, oldContent, newContent []byte) {
	if cd.textDiffer == nil || cs.IsEmpty() {
		return
	}
	cs.TextDiff = cd.textDiffer.UnifiedDiff(oldContent, newContent)
}

// changedFields lists exactly which comparable fields differ between the two
// versions of a bounty.
func changedFields(old, new models.Bounty) []string {
	var fields []string
	if old.Title != new.Title {
		fields = append(fields, "title")
	}
	if old.RewardAmountMinorUnits != new.RewardAmountMinorUnits {
		fields = append(fields, "amount")
	}
	if old.Currency != new.Currency {
		fields = append(fields, "currency")
	}
	if old.Status != new.Status {
		fields = append(fields, "status")
	}
	if !models.TagsEqual(old.Tags, new.Tags) {
		fields = append(fields, "tags")
	}
	if old.SourceURL != new.SourceURL {
		fields = append(fields, "sourceUrl")
	}
	return fields
}
