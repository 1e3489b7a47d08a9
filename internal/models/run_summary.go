package models

import "time"

// ScanKind identifies which selection policy produced the resource set.
type ScanKind string

const (
	ScanKindTargeted ScanKind = "targeted"
	ScanKindFull     ScanKind = "full"
)

// RunStatus is the overall outcome of a run.
type RunStatus string

const (
	// RunStatusSuccess means every selected resource was diffed.
	RunStatusSuccess RunStatus = "success"
	// RunStatusPartial means some resources errored or were skipped but a
	// diff was still produced for the rest.
	RunStatusPartial RunStatus = "partial"
	// RunStatusFatal means configuration was unreadable and nothing was
	// processed.
	RunStatusFatal RunStatus = "fatal"
)

// ResourceOutcome classifies what happened to one resource during a run.
type ResourceOutcome string

const (
	OutcomeChanged   ResourceOutcome = "changed"
	OutcomeUnchanged ResourceOutcome = "unchanged"
	// OutcomeErrored means fetch or extraction failed after all backends and
	// retries; the stored fingerprint was left untouched.
	OutcomeErrored ResourceOutcome = "errored"
	// OutcomeSkipped means the resource was never started (circuit open or
	// run deadline expired first).
	OutcomeSkipped ResourceOutcome = "skipped"
)

// ResourceResult is the per-resource record in the run summary.
type ResourceResult struct {
	ResourceID string          `json:"resource_id"`
	Outcome    ResourceOutcome `json:"outcome"`
	Error      string          `json:"error,omitempty"`
	Backend    string          `json:"backend,omitempty"`
	Entities   int             `json:"entities"`
}

// RunSummary is the user-visible report for one run. Per-resource errors are
// collected here rather than raised, so sibling resources keep processing.
type RunSummary struct {
	RunID     string           `json:"run_id"`
	ScanKind  ScanKind         `json:"scan_kind"`
	StartedAt time.Time        `json:"started_at"`
	EndedAt   time.Time        `json:"ended_at"`
	Status    RunStatus        `json:"status"`
	Results   []ResourceResult `json:"results,omitempty"`
	Changed   int              `json:"changed"`
	Unchanged int              `json:"unchanged"`
	Errored   int              `json:"errored"`
	Skipped   int              `json:"skipped"`
}

// Finalize derives counters and overall status from the per-resource results.
func (rs *RunSummary) Finalize(endedAt time.Time) {
	rs.EndedAt = endedAt
	rs.Changed, rs.Unchanged, rs.Errored, rs.Skipped = 0, 0, 0, 0
	for _, r := range rs.Results {
		switch r.Outcome {
		case OutcomeChanged:
			rs.Changed++
		case OutcomeUnchanged:
			rs.Unchanged++
		case OutcomeErrored:
			rs.Errored++
		case OutcomeSkipped:
			rs.Skipped++
		}
	}
	if rs.Errored > 0 || rs.Skipped > 0 {
		rs.Status = RunStatusPartial
	} else {
		rs.Status = RunStatusSuccess
	}
}
