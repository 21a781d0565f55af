// Package pipeline orchestrates the console operations: normalization
// sweeps, match runs, duplicate scans and merges. Each run is recorded as
// a JobRun and its progress is pushed to connected console clients.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/scoutdesk/scoutdesk/internal/cache"
	"github.com/scoutdesk/scoutdesk/internal/dedupe"
	"github.com/scoutdesk/scoutdesk/internal/gateway"
	"github.com/scoutdesk/scoutdesk/internal/match"
	"github.com/scoutdesk/scoutdesk/internal/models"
	"github.com/scoutdesk/scoutdesk/internal/normalize"
	"github.com/scoutdesk/scoutdesk/internal/writeback"
	"github.com/scoutdesk/scoutdesk/internal/ws"
)

// Options carries the tunables the pipeline needs beyond its collaborators
type Options struct {
	ProximityMeters float64
	WriteRatePerSec float64
	RetryPolicy     writeback.RetryPolicy
}

// Service runs the console operations against one store/geocoder pair
type Service struct {
	store      gateway.Store
	normalizer *normalize.Normalizer
	snap       *cache.Snapshot
	db         *gorm.DB // nil disables the job log
	hub        *ws.Hub  // nil disables progress events
	opts       Options

	mu           sync.Mutex
	lastClusters map[string]dedupe.Cluster
}

// NewService wires the pipeline. db and hub may be nil.
func NewService(store gateway.Store, geo gateway.Geocoder, snap *cache.Snapshot, db *gorm.DB, hub *ws.Hub, opts Options) *Service {
	if opts.ProximityMeters <= 0 {
		opts.ProximityMeters = dedupe.DefaultProximityMeters
	}
	return &Service{
		store:        store,
		normalizer:   normalize.New(geo),
		snap:         snap,
		db:           db,
		hub:          hub,
		opts:         opts,
		lastClusters: make(map[string]dedupe.Cluster),
	}
}

// Snapshot exposes the shared cache for read-only handlers
func (s *Service) Snapshot() *cache.Snapshot { return s.snap }

// coordinator builds a fresh write-back coordinator whose progress events
// carry the given job id
func (s *Service) coordinator(jobID, kind string) *writeback.Coordinator {
	var progress func(writeback.Progress)
	if s.hub != nil {
		hub := s.hub
		progress = func(p writeback.Progress) {
			hub.Broadcast(ws.Event{Type: "job_progress", JobID: jobID, Kind: kind, Payload: p})
		}
	}
	return writeback.New(s.store, s.opts.WriteRatePerSec, s.opts.RetryPolicy, progress)
}

// recordDetail is one per-record outcome stored on the job run
type recordDetail struct {
	ID      string `json:"id"`
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
}

func (s *Service) startJob(kind, target, operator string, force, dryRun bool) *models.JobRun {
	job := &models.JobRun{
		Kind:      kind,
		Target:    target,
		Operator:  operator,
		Force:     force,
		DryRun:    dryRun,
		StartedAt: time.Now(),
	}
	if s.db != nil {
		if err := s.db.Create(job).Error; err != nil {
			log.Printf("⚠️ Failed to persist job run: %v", err)
		}
	}
	if s.hub != nil {
		s.hub.Broadcast(ws.Event{Type: "job_started", JobID: job.ID.String(), Kind: kind})
	}
	return job
}

func (s *Service) finishJob(job *models.JobRun, details []recordDetail, runErr error) {
	now := time.Now()
	job.FinishedAt = &now
	job.DurationMs = now.Sub(job.StartedAt).Milliseconds()
	if runErr != nil {
		job.Error = runErr.Error()
	}
	if len(details) > 0 {
		if raw, err := json.Marshal(details); err == nil {
			job.Details = raw
		}
	}
	if s.db != nil {
		if err := s.db.Save(job).Error; err != nil {
			log.Printf("⚠️ Failed to update job run: %v", err)
		}
	}
	if s.hub != nil {
		evType := "job_done"
		if runErr != nil {
			evType = "job_failed"
		}
		s.hub.Broadcast(ws.Event{Type: evType, JobID: job.ID.String(), Kind: job.Kind, Payload: job})
	}
}

// Jobs returns recent job runs, newest first
func (s *Service) Jobs(limit int) ([]models.JobRun, error) {
	if s.db == nil {
		return nil, errors.New("job log not configured")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var jobs []models.JobRun
	err := s.db.Order("started_at DESC").Limit(limit).Find(&jobs).Error
	return jobs, err
}

// ErrUnknownJob is returned when a job id has no run on record
var ErrUnknownJob = errors.New("unknown job id")

// Job returns one job run with its per-record details
func (s *Service) Job(id string) (*models.JobRun, error) {
	if s.db == nil {
		return nil, errors.New("job log not configured")
	}
	var job models.JobRun
	if err := s.db.First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownJob
		}
		return nil, err
	}
	return &job, nil
}

// NormalizeReport is the outcome of one normalization sweep
type NormalizeReport struct {
	JobID     string                `json:"job_id"`
	Total     int                   `json:"total"`
	Updated   int                   `json:"updated"`
	Unchanged int                   `json:"unchanged"`
	Skipped   int                   `json:"skipped"`
	Failed    int                   `json:"failed"`
	Staged    []gateway.FieldUpdate `json:"staged,omitempty"` // dry run only
	Write     *writeback.Report     `json:"write,omitempty"`
}

// Normalize sweeps one logical table (or every table when table is empty)
// and rewrites address fields to canonical form. strict additionally sends
// raw full addresses through the geocoding provider; without it only the
// stored structured fields are cleaned. apply=false stages updates without
// writing. The masters table is swept through the same normalizer but
// writes land on the master rows.
func (s *Service) Normalize(ctx context.Context, table, operator string, strict, apply bool) (*NormalizeReport, error) {
	if table == gateway.TableMasters {
		return s.normalizeMasters(ctx, operator, strict, apply)
	}

	job := s.startJob(models.JobKindNormalize, table, operator, strict, !apply)

	var records []models.LocationRecord
	var err error
	if table == "" {
		records, _, err = s.snap.Get(ctx, true)
	} else {
		records, err = s.store.FetchRecordsForTable(ctx, table)
	}
	if err != nil {
		s.finishJob(job, nil, err)
		return nil, err
	}

	report := &NormalizeReport{JobID: job.ID.String(), Total: len(records)}
	var updates []gateway.FieldUpdate
	var details []recordDetail

	for i := range records {
		r := &records[i]

		in := normalize.Input{Structured: r.StructuredAddress}
		if strict {
			in.FullAddress = r.FullAddress
		}

		res, nerr := s.normalizer.Normalize(ctx, in)
		if nerr != nil {
			if errors.Is(nerr, normalize.ErrMissingAddressInput) {
				report.Skipped++
				details = append(details, recordDetail{ID: r.PageID, Outcome: "skipped", Reason: "no address input"})
				continue
			}
			// Upstream lookup failures affect one record, not the sweep
			report.Failed++
			details = append(details, recordDetail{ID: r.PageID, Outcome: "failed", Reason: nerr.Error()})
			job.Failed++
			continue
		}

		fields := normalizedFields(r, res)
		if len(fields) == 0 {
			report.Unchanged++
			continue
		}

		report.Updated++
		details = append(details, recordDetail{ID: r.PageID, Outcome: "updated"})
		updates = append(updates, gateway.FieldUpdate{
			Entity: gateway.EntityRecord,
			PageID: r.PageID,
			Table:  r.Table,
			Fields: fields,
			Reason: "normalize",
		})
	}

	job.Updated = report.Updated
	job.Unchanged = report.Unchanged
	job.Skipped = report.Skipped

	if !apply {
		report.Staged = updates
		s.finishJob(job, details, nil)
		return report, nil
	}

	wr, werr := s.coordinator(job.ID.String(), models.JobKindNormalize).Write(ctx, updates)
	report.Write = wr
	job.Failed += len(wr.Failed)
	s.finishJob(job, details, werr)
	if werr != nil {
		return report, werr
	}
	return report, nil
}

// normalizeMasters sweeps the canonical master list. Masters ingested by
// hand carry the same un-normalized fields records do; until they are
// canonicalized their address hashes never line up with normalized records.
func (s *Service) normalizeMasters(ctx context.Context, operator string, strict, apply bool) (*NormalizeReport, error) {
	job := s.startJob(models.JobKindNormalize, gateway.TableMasters, operator, strict, !apply)

	_, masters, err := s.snap.Get(ctx, true)
	if err != nil {
		s.finishJob(job, nil, err)
		return nil, err
	}

	report := &NormalizeReport{JobID: job.ID.String(), Total: len(masters)}
	var updates []gateway.FieldUpdate
	var details []recordDetail

	for i := range masters {
		m := &masters[i]
		if m.Archived {
			report.Skipped++
			details = append(details, recordDetail{ID: m.PageID, Outcome: "skipped", Reason: "archived"})
			continue
		}

		in := normalize.Input{Structured: m.StructuredAddress}
		if strict {
			in.FullAddress = m.FormattedAddress
			if in.FullAddress == "" {
				in.FullAddress = m.GoogleFormatted
			}
		}

		res, nerr := s.normalizer.Normalize(ctx, in)
		if nerr != nil {
			if errors.Is(nerr, normalize.ErrMissingAddressInput) {
				report.Skipped++
				details = append(details, recordDetail{ID: m.PageID, Outcome: "skipped", Reason: "no address input"})
				continue
			}
			report.Failed++
			details = append(details, recordDetail{ID: m.PageID, Outcome: "failed", Reason: nerr.Error()})
			job.Failed++
			continue
		}

		fields := masterNormalizedFields(m, res)
		if len(fields) == 0 {
			report.Unchanged++
			continue
		}

		report.Updated++
		details = append(details, recordDetail{ID: m.PageID, Outcome: "updated"})
		updates = append(updates, gateway.FieldUpdate{
			Entity: gateway.EntityMaster,
			PageID: m.PageID,
			Fields: fields,
			Reason: "normalize",
		})
	}

	job.Updated = report.Updated
	job.Unchanged = report.Unchanged
	job.Skipped = report.Skipped

	if !apply {
		report.Staged = updates
		s.finishJob(job, details, nil)
		return report, nil
	}

	wr, werr := s.coordinator(job.ID.String(), models.JobKindNormalize).Write(ctx, updates)
	report.Write = wr
	job.Failed += len(wr.Failed)
	s.finishJob(job, details, werr)
	if werr != nil {
		return report, werr
	}
	return report, nil
}

// normalizedFields diffs a normalization result against the stored record
// and returns only the fields that actually change
func normalizedFields(r *models.LocationRecord, res *normalize.Result) map[string]interface{} {
	fields := make(map[string]interface{})

	diff := func(name, stored, fresh string) {
		if fresh != "" && fresh != stored {
			fields[name] = fresh
		}
	}
	diff(gateway.FieldAddress1, r.Address1, res.Address1)
	diff(gateway.FieldAddress2, r.Address2, res.Address2)
	diff(gateway.FieldAddress3, r.Address3, res.Address3)
	diff(gateway.FieldCity, r.City, res.City)
	diff(gateway.FieldState, r.State, res.State)
	diff(gateway.FieldZip, r.Zip, res.Zip)
	diff(gateway.FieldCountry, r.Country, res.Country)
	diff(gateway.FieldCounty, r.County, res.County)
	diff(gateway.FieldBorough, r.Borough, res.Borough)

	if res.Formatted != "" && res.Formatted != r.FullAddress {
		fields[gateway.FieldFullAddress] = res.Formatted
	}
	if res.UsedLookup {
		diff(gateway.FieldPlaceID, r.PlaceID, res.PlaceID)
		if res.Latitude != 0 || res.Longitude != 0 {
			if res.Latitude != r.Latitude || res.Longitude != r.Longitude {
				fields[gateway.FieldLatitude] = res.Latitude
				fields[gateway.FieldLongitude] = res.Longitude
			}
		}
	}
	return fields
}

// masterNormalizedFields is the master-row counterpart of normalizedFields.
// The canonical formatted string lands in Formatted Address; Name,
// Practical Name and Notes stay untouched.
func masterNormalizedFields(m *models.MasterLocation, res *normalize.Result) map[string]interface{} {
	fields := make(map[string]interface{})

	diff := func(name, stored, fresh string) {
		if fresh != "" && fresh != stored {
			fields[name] = fresh
		}
	}
	diff(gateway.FieldAddress1, m.Address1, res.Address1)
	diff(gateway.FieldAddress2, m.Address2, res.Address2)
	diff(gateway.FieldAddress3, m.Address3, res.Address3)
	diff(gateway.FieldCity, m.City, res.City)
	diff(gateway.FieldState, m.State, res.State)
	diff(gateway.FieldZip, m.Zip, res.Zip)
	diff(gateway.FieldCountry, m.Country, res.Country)
	diff(gateway.FieldCounty, m.County, res.County)
	diff(gateway.FieldBorough, m.Borough, res.Borough)
	diff(gateway.FieldFormatted, m.FormattedAddress, res.Formatted)

	if res.UsedLookup {
		diff(gateway.FieldGoogleFormatted, m.GoogleFormatted, res.GoogleFormatted)
		diff(gateway.FieldPlaceID, m.PlaceID, res.PlaceID)
		diff(gateway.FieldMapURL, m.MapURL, res.MapURL)
		if res.Latitude != 0 || res.Longitude != 0 {
			if res.Latitude != m.Latitude || res.Longitude != m.Longitude {
				fields[gateway.FieldLatitude] = res.Latitude
				fields[gateway.FieldLongitude] = res.Longitude
			}
		}
	}
	return fields
}

// MatchReport is the outcome of one match run
type MatchReport struct {
	JobID      string            `json:"job_id"`
	Total      int               `json:"total"`
	Matched    int               `json:"matched"`
	Unresolved int               `json:"unresolved"`
	Unchanged  int               `json:"unchanged"`
	Results    []match.Result    `json:"results"`
	Write      *writeback.Report `json:"write,omitempty"`
}

// Match links records to masters across all productions. force recomputes
// links that already exist; refresh bypasses the snapshot cache.
func (s *Service) Match(ctx context.Context, operator string, force, refresh, apply bool) (*MatchReport, error) {
	job := s.startJob(models.JobKindMatch, "", operator, force, !apply)

	records, masters, err := s.snap.Get(ctx, refresh)
	if err != nil {
		s.finishJob(job, nil, err)
		return nil, err
	}

	results := match.MatchAll(records, masters, force)
	report := &MatchReport{JobID: job.ID.String(), Total: len(results), Results: results}

	var details []recordDetail
	for _, res := range results {
		switch res.Outcome {
		case match.OutcomeMatched:
			report.Matched++
		case match.OutcomeUnresolved:
			report.Unresolved++
		default:
			report.Unchanged++
		}
		if res.Changed {
			details = append(details, recordDetail{ID: res.RecordPageID, Outcome: string(res.Outcome), Reason: res.Reason})
		}
	}

	job.Matched = report.Matched
	job.Unresolved = report.Unresolved
	job.Unchanged = report.Unchanged

	updates := match.Updates(results)
	job.Updated = len(updates)

	if !apply {
		s.finishJob(job, details, nil)
		return report, nil
	}

	wr, werr := s.coordinator(job.ID.String(), models.JobKindMatch).Write(ctx, updates)
	report.Write = wr
	job.Failed = len(wr.Failed)
	s.finishJob(job, details, werr)
	if werr != nil {
		return report, werr
	}
	return report, nil
}

// FindDuplicates scans the master list for suspected duplicate clusters.
// Clusters are remembered in memory so a merge preview can refer to one by
// id until the next scan replaces them.
func (s *Service) FindDuplicates(ctx context.Context, operator string, refresh bool) ([]dedupe.Cluster, error) {
	job := s.startJob(models.JobKindDedupScan, "", operator, false, true)

	_, masters, err := s.snap.Get(ctx, refresh)
	if err != nil {
		s.finishJob(job, nil, err)
		return nil, err
	}

	clusters := dedupe.FindClusters(masters, s.opts.ProximityMeters)

	s.mu.Lock()
	s.lastClusters = make(map[string]dedupe.Cluster, len(clusters))
	for _, c := range clusters {
		s.lastClusters[c.ID] = c
	}
	s.mu.Unlock()

	job.Updated = len(clusters)
	s.finishJob(job, nil, nil)
	return clusters, nil
}

// ErrUnknownCluster is returned when a merge refers to a cluster id not
// produced by the latest duplicate scan
var ErrUnknownCluster = errors.New("unknown cluster id, re-run the duplicate scan")

func (s *Service) cluster(id string) (dedupe.Cluster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.lastClusters[id]
	if !ok {
		return dedupe.Cluster{}, fmt.Errorf("%w: %s", ErrUnknownCluster, id)
	}
	return c, nil
}

// MergePreview pairs a computed plan with the suggested primary so the
// console can pre-select it
type MergePreview struct {
	Cluster          dedupe.Cluster    `json:"cluster"`
	SuggestedPrimary string            `json:"suggested_primary"`
	Plan             *dedupe.MergePlan `json:"plan"`
}

// PreviewMerge computes the merge plan for a cluster without writing
// anything. primaryID may be empty; the suggestion is used then.
func (s *Service) PreviewMerge(ctx context.Context, clusterID, primaryID string) (*MergePreview, error) {
	c, err := s.cluster(clusterID)
	if err != nil {
		return nil, err
	}

	suggested := dedupe.SuggestPrimary(c)
	if primaryID == "" {
		primaryID = suggested
	}

	records, _, err := s.snap.Get(ctx, false)
	if err != nil {
		return nil, err
	}

	plan, err := dedupe.PlanMerge(c, primaryID, nil, records)
	if err != nil {
		return nil, err
	}
	return &MergePreview{Cluster: c, SuggestedPrimary: suggested, Plan: plan}, nil
}

// MergeReport is the outcome of one applied merge
type MergeReport struct {
	JobID string            `json:"job_id"`
	Plan  *dedupe.MergePlan `json:"plan"`
	Write *writeback.Report `json:"write"`
}

// ApplyMerge executes an operator-confirmed merge. The plan is recomputed
// against fresh data so updates already applied by a previous partial run
// are skipped rather than repeated.
func (s *Service) ApplyMerge(ctx context.Context, operator, clusterID, primaryID string, duplicateIDs []string) (*MergeReport, error) {
	c, err := s.cluster(clusterID)
	if err != nil {
		return nil, err
	}
	if primaryID == "" {
		return nil, errors.New("merge requires an explicit primary")
	}

	job := s.startJob(models.JobKindMerge, clusterID, operator, false, false)

	records, masters, err := s.snap.Get(ctx, true)
	if err != nil {
		s.finishJob(job, nil, err)
		return nil, err
	}

	plan, err := dedupe.PlanMerge(c, primaryID, duplicateIDs, records)
	if err != nil {
		s.finishJob(job, nil, err)
		return nil, err
	}

	updates := dedupe.ApplyUpdates(plan, masters, records)
	job.Updated = len(updates)

	wr, werr := s.coordinator(job.ID.String(), models.JobKindMerge).Write(ctx, updates)
	job.Failed = len(wr.Failed)
	s.finishJob(job, nil, werr)

	// The snapshot no longer reflects the store after a merge
	if len(updates) > 0 && werr == nil {
		if rerr := s.snap.Refresh(ctx); rerr != nil {
			log.Printf("⚠️ Cache refresh after merge failed: %v", rerr)
		}
	}

	report := &MergeReport{JobID: job.ID.String(), Plan: plan, Write: wr}
	if werr != nil {
		return report, werr
	}
	return report, nil
}
