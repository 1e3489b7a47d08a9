package models

import "time"

// Fingerprint is the persisted signature and metadata for one watched
// resource, used to detect change without full extraction. It is written on
// every fetch attempt that produced usable content and retained unchanged
// when a fetch fails. Invariant: LastChangedAt <= LastCheckedAt when both
// are set.
type Fingerprint struct {
	ResourceID          string     `json:"resource_id"`
	Signature           string     `json:"signature"`
	LastCheckedAt       time.Time  `json:"last_checked_at"`
	LastChangedAt       *time.Time `json:"last_changed_at,omitempty"`
	EntityCountEstimate int        `json:"entity_count_estimate"`
	// ETag and LastModified cache the upstream validators so the HTTP
	// backend can issue conditional GETs.
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
	// ProbeHash is the composite of the last cheap-poll observation
	// (status, content length, body hash). A mismatch marks the resource
	// "maybe changed" for the next targeted scan.
	ProbeHash string `json:"probe_hash,omitempty"`
}

// Touch records a check at ts, marking changed when the signature moved.
func (fp *Fingerprint) Touch(ts time.Time, newSignature string, entityCount int) {
	if fp.Signature != newSignature {
		changed := ts
		fp.LastChangedAt = &changed
	}
	fp.Signature = newSignature
	fp.LastCheckedAt = ts
	fp.EntityCountEstimate = entityCount
}

// EntitySnapshot is the full set of bounties observed for one resource at one
// point in time.
type EntitySnapshot struct {
	ResourceID string    `json:"resource_id"`
	RecordedAt time.Time `json:"recorded_at"`
	Bounties   []Bounty  `json:"bounties"`
}

// IDSet returns the set of bounty IDs in the snapshot.
func (s *EntitySnapshot) IDSet() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.Bounties))
	for _, b := range s.Bounties {
		ids[b.ID] = struct{}{}
	}
	return ids
}
