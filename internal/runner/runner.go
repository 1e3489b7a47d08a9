// Package runner wires the scan pipeline: selection, cheap probe,
// orchestrated fetch, extraction, change detection and persistence.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lessuselesss/bounty-crawl/internal/common"
	"github.com/lessuselesss/bounty-crawl/internal/config"
	"github.com/lessuselesss/bounty-crawl/internal/datastore"
	"github.com/lessuselesss/bounty-crawl/internal/differ"
	"github.com/lessuselesss/bounty-crawl/internal/extractor"
	"github.com/lessuselesss/bounty-crawl/internal/fetcher"
	"github.com/lessuselesss/bounty-crawl/internal/models"
	"github.com/lessuselesss/bounty-crawl/internal/orchestrator"
	"github.com/lessuselesss/bounty-crawl/internal/prober"
	"github.com/lessuselesss/bounty-crawl/internal/scheduler"
)

// SignalSink receives change signals for coalescing. Satisfied by the
// coalescer; a nil sink disables signalling.
type SignalSink interface {
	Signal(resourceID string)
}

// ErrorReporter delivers the aggregated per-run error report. Satisfied by
// the webhook notifier.
type ErrorReporter interface {
	ReportErrors(ctx context.Context, runID string, errorsByResource map[string]string) error
}

// SnapshotArchive is the snapshot persistence the runner diffs against.
// Satisfied by the parquet snapshot store.
type SnapshotArchive interface {
	Load(resourceID string) (*models.EntitySnapshot, error)
	Save(snapshot *models.EntitySnapshot) error
	Delete(resourceID string) error
}

// Deps collects the pipeline components the runner coordinates.
type Deps struct {
	Resources    []config.WatchedResource
	Orchestrator *orchestrator.Orchestrator
	Extractor    *extractor.Extractor
	Detector     *differ.ChangeDetector
	Signatures   *differ.SignatureGenerator
	Fingerprints *datastore.FingerprintStore
	Snapshots    SnapshotArchive
	Scheduler    *scheduler.Scheduler
	History      *scheduler.HistoryStore
	Prober       *prober.Prober
	Signals      SignalSink
	Reporter     ErrorReporter
}

// Runner executes one scan run end to end. Per-resource failures are
// collected in the summary; only configuration-level problems abort a run.
type Runner struct {
	deps   Deps
	logger zerolog.Logger
}

// NewRunner creates a runner over the given dependencies.
func NewRunner(deps Deps, logger zerolog.Logger) (*Runner, error) {
	if deps.Orchestrator == nil || deps.Extractor == nil || deps.Detector == nil ||
		deps.Signatures == nil || deps.Fingerprints == nil || deps.Snapshots == nil {
		return nil, common.NewError("runner is missing required pipeline components")
	}
	return &Runner{
		deps:   deps,
		logger: logger.With().Str("component", "Runner").Logger(),
	}, nil
}

// Run executes a scan. The forced set (from coalesced push signals) is
// always included in a targeted scan regardless of poll eligibility.
func (r *Runner) Run(ctx context.Context, forced map[string]bool) (*models.RunSummary, *models.RunChangeSet, error) {
	runID := uuid.New().String()
	startedAt := time.Now().UTC()
	if forced == nil {
		forced = map[string]bool{}
	}

	kind := models.ScanKindFull
	if r.deps.Scheduler != nil {
		kind = r.deps.Scheduler.DecideScanKind(startedAt)
	}
	r.logger.Info().Str("run_id", runID).Str("scan_kind", string(kind)).Msg("Starting scan run")

	fingerprints, err := r.loadFingerprints()
	if err != nil {
		return nil, nil, err
	}

	probeHashes := map[string]string{}
	if kind == models.ScanKindTargeted && r.deps.Prober != nil {
		probeHashes = r.mergeProbeHits(fingerprints, forced)
	}

	selected := r.deps.Resources
	if r.deps.Scheduler != nil {
		lastChecked := make(map[string]time.Time, len(fingerprints))
		for id, fp := range fingerprints {
			lastChecked[id] = fp.LastCheckedAt
		}
		selected = r.deps.Scheduler.SelectResources(kind, r.deps.Resources, lastChecked, forced, startedAt)
	}

	summary := &models.RunSummary{
		RunID:     runID,
		ScanKind:  kind,
		StartedAt: startedAt,
	}
	runChanges := &models.RunChangeSet{RunID: runID, GeneratedAt: startedAt}

	var historyID int64
	if r.deps.History != nil {
		if historyID, err = r.deps.History.RecordStart(runID, kind, startedAt, len(selected)); err != nil {
			r.logger.Warn().Err(err).Msg("Could not record scan start in history")
		}
	}

	requests := make([]fetcher.FetchRequest, 0, len(selected))
	for _, resource := range selected {
		req := fetcher.FetchRequest{ResourceID: resource.ID, Endpoint: resource.Endpoint}
		if fp := fingerprints[resource.ID]; fp != nil {
			req.PreviousETag = fp.ETag
			req.PreviousLastModified = fp.LastModified
		}
		requests = append(requests, req)
	}

	var mu sync.Mutex
	errorsByResource := make(map[string]string)

	r.deps.Orchestrator.FetchAll(ctx, requests, func(ctx context.Context, req fetcher.FetchRequest, content *fetcher.RawContent, fetchErr error) {
		result, changeSet := r.processResource(ctx, req, content, fetchErr, fingerprints[req.ResourceID], probeHashes[req.ResourceID])

		mu.Lock()
		defer mu.Unlock()
		summary.Results = append(summary.Results, result)
		if result.Error != "" {
			errorsByResource[req.ResourceID] = result.Error
		}
		if changeSet != nil && !changeSet.IsEmpty() {
			runChanges.Changes = append(runChanges.Changes, *changeSet)
		}
	})

	r.reconcileUniverse(fingerprints, runChanges)

	for _, cs := range runChanges.Changes {
		if r.deps.Signals != nil {
			r.deps.Signals.Signal(cs.ResourceID)
		}
	}

	summary.Finalize(time.Now().UTC())
	if r.deps.History != nil && historyID > 0 {
		if err := r.deps.History.RecordCompletion(historyID, summary); err != nil {
			r.logger.Warn().Err(err).Msg("Could not record scan completion in history")
		}
	}
	if r.deps.Reporter != nil && len(errorsByResource) > 0 {
		if err := r.deps.Reporter.ReportErrors(ctx, runID, errorsByResource); err != nil {
			r.logger.Warn().Err(err).Msg("Aggregated error report delivery failed")
		}
	}

	r.logger.Info().
		Str("run_id", runID).
		Str("status", string(summary.Status)).
		Int("changed", summary.Changed).
		Int("unchanged", summary.Unchanged).
		Int("errored", summary.Errored).
		Int("skipped", summary.Skipped).
		Msg("Scan run completed")
	return summary, runChanges, nil
}

// loadFingerprints reads the stored fingerprint for every watched resource.
func (r *Runner) loadFingerprints() (map[string]*models.Fingerprint, error) {
	fingerprints := make(map[string]*models.Fingerprint, len(r.deps.Resources))
	for _, resource := range r.deps.Resources {
		fp, err := r.deps.Fingerprints.Get(resource.ID)
		if err != nil {
			return nil, common.WrapError(err, "failed to load fingerprints")
		}
		if fp != nil {
			fingerprints[resource.ID] = fp
		}
	}
	return fingerprints, nil
}

// mergeProbeHits runs the cheap poll pass and forces every resource whose
// observation moved, or that the probe could not reach, into the targeted
// set. A probe outage must widen the scan, never narrow it. The returned map
// carries the fresh composites so they can be persisted after a successful
// full fetch.
func (r *Runner) mergeProbeHits(fingerprints map[string]*models.Fingerprint, forced map[string]bool) map[string]string {
	composites := make(map[string]string)
	results, err := r.deps.Prober.Probe(r.deps.Resources)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Cheap poll pass failed, falling back to interval-only selection")
		return composites
	}
	for _, resource := range r.deps.Resources {
		result, answered := results[resource.ID]
		if !answered || result.Failed {
			forced[resource.ID] = true
			continue
		}
		composites[resource.ID] = result.CompositeHash()
		fp := fingerprints[resource.ID]
		if fp == nil || fp.ProbeHash == "" || fp.ProbeHash != result.CompositeHash() {
			forced[resource.ID] = true
		}
	}
	return composites
}

// processResource runs extraction, diffing and persistence for one fetched
// resource and returns its summary row plus any change set.
func (r *Runner) processResource(ctx context.Context, req fetcher.FetchRequest, content *fetcher.RawContent, fetchErr error, previousFP *models.Fingerprint, probeHash string) (models.ResourceResult, *models.ChangeSet) {
	result := models.ResourceResult{ResourceID: req.ResourceID}
	now := time.Now().UTC()

	switch {
	case errors.Is(fetchErr, common.ErrNotModified):
		result.Outcome = models.OutcomeUnchanged
		r.touchUnchanged(previousFP, req.ResourceID, now)
		return result, nil
	case errors.Is(fetchErr, common.ErrRunDeadline), errors.Is(fetchErr, common.ErrCircuitOpen):
		result.Outcome = models.OutcomeSkipped
		result.Error = fetchErr.Error()
		return result, nil
	case fetchErr != nil:
		result.Outcome = models.OutcomeErrored
		result.Error = fetchErr.Error()
		return result, nil
	}

	result.Backend = content.Backend

	bounties, err := r.deps.Extractor.Extract(ctx, req.ResourceID, content)
	if err != nil {
		r.logger.Warn().Err(err).Str("resource_id", req.ResourceID).Msg("Extraction produced no entities")
		result.Outcome = models.OutcomeErrored
		result.Error = err.Error()
		return result, nil
	}
	result.Entities = len(bounties)

	previous, err := r.deps.Snapshots.Load(req.ResourceID)
	if err != nil {
		if previousFP != nil {
			// The fingerprint proves a previous successful pass, so an
			// unreadable snapshot is a persistence fault, not a first
			// observation. Diffing against nothing here would report the
			// whole listing as newly added.
			r.logger.Error().Err(err).Str("resource_id", req.ResourceID).Msg("Could not load previous snapshot for known resource")
			result.Outcome = models.OutcomeErrored
			result.Error = err.Error()
			return result, nil
		}
		r.logger.Warn().Err(err).Str("resource_id", req.ResourceID).Msg("Could not load previous snapshot, treating as first observation")
		previous = nil
	}
	if previousFP == nil {
		// No fingerprint means this resource was never successfully
		// processed; a stale snapshot from a half-finished run must not
		// suppress the first-run flag.
		previous = nil
	}

	changeSet := r.deps.Detector.Detect(req.ResourceID, previous, bounties)
	if !changeSet.IsEmpty() {
		r.deps.Detector.AttachTextDiff(&changeSet, renderListing(previous), renderListingBounties(bounties))
	}

	snapshot := &models.EntitySnapshot{
		ResourceID: req.ResourceID,
		RecordedAt: now,
		Bounties:   bounties,
	}
	if err := r.deps.Snapshots.Save(snapshot); err != nil {
		result.Outcome = models.OutcomeErrored
		result.Error = err.Error()
		return result, nil
	}

	fp := previousFP
	if fp == nil {
		fp = &models.Fingerprint{ResourceID: req.ResourceID}
	}
	fp.Touch(now, r.deps.Signatures.Generate(content.Body), len(bounties))
	if content.ETag != "" {
		fp.ETag = content.ETag
	}
	if content.LastModified != "" {
		fp.LastModified = content.LastModified
	}
	if probeHash != "" {
		fp.ProbeHash = probeHash
	}
	if err := r.deps.Fingerprints.Upsert(fp); err != nil {
		result.Outcome = models.OutcomeErrored
		result.Error = err.Error()
		return result, &changeSet
	}

	if changeSet.IsEmpty() {
		result.Outcome = models.OutcomeUnchanged
		return result, nil
	}
	result.Outcome = models.OutcomeChanged
	return result, &changeSet
}

// touchUnchanged advances the check timestamp after a 304 without moving the
// signature.
func (r *Runner) touchUnchanged(fp *models.Fingerprint, resourceID string, now time.Time) {
	if fp == nil {
		return
	}
	fp.LastCheckedAt = now
	if err := r.deps.Fingerprints.Upsert(fp); err != nil {
		r.logger.Warn().Err(err).Str("resource_id", resourceID).Msg("Could not update fingerprint after 304")
	}
}

// reconcileUniverse detects resources added to or removed from the watched
// set and retires state for removed ones.
func (r *Runner) reconcileUniverse(fingerprints map[string]*models.Fingerprint, runChanges *models.RunChangeSet) {
	known, err := r.deps.Fingerprints.KnownResourceIDs()
	if err != nil {
		r.logger.Warn().Err(err).Msg("Could not list known resources for universe reconciliation")
		return
	}

	configured := make(map[string]bool, len(r.deps.Resources))
	for _, resource := range r.deps.Resources {
		configured[resource.ID] = true
		if _, seen := fingerprints[resource.ID]; !seen {
			runChanges.ResourcesAdded = append(runChanges.ResourcesAdded, resource.ID)
		}
	}
	sort.Strings(runChanges.ResourcesAdded)

	for _, id := range known {
		if configured[id] {
			continue
		}
		runChanges.ResourcesRemoved = append(runChanges.ResourcesRemoved, id)
		if err := r.deps.Fingerprints.Delete(id); err != nil {
			r.logger.Warn().Err(err).Str("resource_id", id).Msg("Could not delete fingerprint for removed resource")
		}
		if err := r.deps.Snapshots.Delete(id); err != nil {
			r.logger.Warn().Err(err).Str("resource_id", id).Msg("Could not delete snapshot for removed resource")
		}
	}
	sort.Strings(runChanges.ResourcesRemoved)
}

// renderListing flattens a snapshot into the canonical one-line-per-bounty
// text form used for notification diffs.
func renderListing(snapshot *models.EntitySnapshot) []byte {
	if snapshot == nil {
		return nil
	}
	return renderListingBounties(snapshot.Bounties)
}

func renderListingBounties(bounties []models.Bounty) []byte {
	lines := make([]string, 0, len(bounties))
	for _, b := range bounties {
		lines = append(lines, fmt.Sprintf("%s | %s | %d %s | %s | %s",
			b.ID, b.Title, b.RewardAmountMinorUnits, b.Currency, b.Status, strings.Join(b.Tags, ",")))
	}
	sort.Strings(lines)
	return []byte(strings.Join(lines, "\n"))
}
