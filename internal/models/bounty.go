// Package models defines the shared data model for bounty-crawl.
package models

import (
	"sort"
	"time"
)

// BountyStatus is the lifecycle state of a bounty.
type BountyStatus string

const (
	StatusOpen       BountyStatus = "open"
	StatusInProgress BountyStatus = "inProgress"
	StatusCompleted  BountyStatus = "completed"
	StatusClosed     BountyStatus = "closed"
)

// AmountUnknown is the sentinel used when no reward amount could be parsed
// from the source content.
const AmountUnknown int64 = -1

// Bounty is one normalized record extracted from a watched resource. The ID
// is derived deterministically from the originating issue/task reference
// (e.g. "acme/widgets#123"), never from position or ephemeral UI state, so
// it stays stable across runs.
type Bounty struct {
	ID                     string       `json:"id"`
	Title                  string       `json:"title"`
	RewardAmountMinorUnits int64        `json:"reward_amount_minor_units"`
	Currency               string       `json:"currency"`
	Status                 BountyStatus `json:"status"`
	Tags                   []string     `json:"tags,omitempty"`
	SourceURL              string       `json:"source_url"`
	CreatedAt              time.Time    `json:"created_at"`
	UpdatedAt              time.Time    `json:"updated_at"`
}

// NormalizeTags sorts and deduplicates the tag set so comparisons are
// order-independent.
func (b *Bounty) NormalizeTags() {
	if len(b.Tags) < 2 {
		return
	}
	sort.Strings(b.Tags)
	out := b.Tags[:1]
	for _, tag := range b.Tags[1:] {
		if tag != out[len(out)-1] {
			out = append(out, tag)
		}
	}
	b.Tags = out
}

// TagsEqual compares two normalized tag sets.
func TagsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
