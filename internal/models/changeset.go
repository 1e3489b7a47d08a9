package models

import "time"

// BountyUpdate pairs the old and new version of a bounty whose fields
// changed, listing exactly which fields differ.
type BountyUpdate struct {
	Old    Bounty   `json:"old"`
	New    Bounty   `json:"new"`
	Fields []string `json:"fields"`
}

// ChangeSet is the semantic diff for one resource between two snapshots.
// Immutable once computed.
type ChangeSet struct {
	ResourceID string         `json:"resource_id"`
	Added      []Bounty       `json:"added,omitempty"`
	Removed    []Bounty       `json:"removed,omitempty"`
	Updated    []BountyUpdate `json:"updated,omitempty"`
	// IsFirstRun distinguishes "everything is new because we have never seen
	// this resource" from a genuine change storm.
	IsFirstRun bool `json:"is_first_run,omitempty"`
	// TextDiff optionally carries a unified text diff of the rendered page
	// content for notification context.
	TextDiff string `json:"text_diff,omitempty"`
}

// IsEmpty reports whether the change set carries no entity changes.
func (cs *ChangeSet) IsEmpty() bool {
	return len(cs.Added) == 0 && len(cs.Removed) == 0 && len(cs.Updated) == 0
}

// PendingChangeBatch is the deduplicated set of resources whose change
// signals were coalesced into one debounce window.
type PendingChangeBatch struct {
	ResourceIDs    []string  `json:"resource_ids"`
	WindowOpenedAt time.Time `json:"window_opened_at"`
}

// RunChangeSet aggregates per-resource change sets plus resource-universe
// membership changes for one run. Handed to the downstream archival stage.
type RunChangeSet struct {
	RunID            string      `json:"run_id"`
	GeneratedAt      time.Time   `json:"generated_at"`
	Changes          []ChangeSet `json:"changes,omitempty"`
	ResourcesAdded   []string    `json:"resources_added,omitempty"`
	ResourcesRemoved []string    `json:"resources_removed,omitempty"`
}

// IsEmpty reports whether the run produced no changes and no membership
// movement, so there is nothing to archive.
func (rcs *RunChangeSet) IsEmpty() bool {
	return len(rcs.Changes) == 0 && len(rcs.ResourcesAdded) == 0 && len(rcs.ResourcesRemoved) == 0
}
