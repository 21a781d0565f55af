package pipeline

import (
	"context"
	"fmt"

	"github.com/scoutdesk/scoutdesk/internal/gateway"
	"github.com/scoutdesk/scoutdesk/internal/identity"
	"github.com/scoutdesk/scoutdesk/internal/models"
	"github.com/scoutdesk/scoutdesk/internal/normalize"
)

// BackfillReport is the outcome of one backfill run
type BackfillReport struct {
	JobID          string            `json:"job_id"`
	Candidates     int               `json:"candidates"`
	CreatedMasters int               `json:"created_masters"`
	LinkedRecords  int               `json:"linked_records"`
	Skipped        int               `json:"skipped"`
	Failed         int               `json:"failed"`
}

// Backfill creates master locations for resolved records that match no
// existing master and links them. Records sharing a place id share the
// newly created master, so a place id stays unique across the master
// list. apply=false reports what would be created without writing.
func (s *Service) Backfill(ctx context.Context, operator string, apply bool) (*BackfillReport, error) {
	job := s.startJob(models.JobKindBackfill, "", operator, false, !apply)

	records, masters, err := s.snap.Get(ctx, true)
	if err != nil {
		s.finishJob(job, nil, err)
		return nil, err
	}

	// Existing identity keys block creation
	taken := make(map[identity.Key]string)
	maxID := 0
	for i := range masters {
		m := &masters[i]
		if m.MasterID > maxID {
			maxID = m.MasterID
		}
		if m.Archived {
			continue
		}
		for _, k := range identity.ResolveAll(m.StructuredAddress, m.PlaceID) {
			if _, ok := taken[k]; !ok {
				taken[k] = m.PageID
			}
		}
	}

	report := &BackfillReport{JobID: job.ID.String()}
	var details []recordDetail
	var linkUpdates []gateway.FieldUpdate

	// Masters created within this run, keyed by the record's primary key
	created := make(map[identity.Key]string)

	for i := range records {
		r := &records[i]
		if r.MasterRef != "" {
			continue
		}

		key := identity.Resolve(r.StructuredAddress, r.PlaceID)
		if key.Zero() || key.Kind == identity.KindCoarse {
			// Too weak an identity to mint a canonical place from
			report.Skipped++
			continue
		}
		report.Candidates++

		if _, exists := taken[key]; exists {
			// A match run will pick this up; backfill never re-links
			report.Skipped++
			details = append(details, recordDetail{ID: r.PageID, Outcome: "skipped", Reason: "existing master matches"})
			continue
		}

		masterPageID, ok := created[key]
		if !ok {
			if !apply {
				report.CreatedMasters++
				// The creating record would be linked to its new master
				report.LinkedRecords++
				created[key] = fmt.Sprintf("pending-%d", len(created)+1)
				details = append(details, recordDetail{ID: r.PageID, Outcome: "would-create"})
				continue
			}

			maxID++
			m := masterFromRecord(r, maxID)
			masterPageID, err = s.store.CreateMaster(ctx, m)
			if err != nil {
				report.Failed++
				details = append(details, recordDetail{ID: r.PageID, Outcome: "failed", Reason: err.Error()})
				maxID--
				continue
			}
			created[key] = masterPageID
			report.CreatedMasters++
			details = append(details, recordDetail{ID: r.PageID, Outcome: "created", Reason: masterPageID})
		} else if !apply {
			report.LinkedRecords++
			continue
		}

		linkUpdates = append(linkUpdates, gateway.FieldUpdate{
			Entity: gateway.EntityRecord,
			PageID: r.PageID,
			Table:  r.Table,
			Fields: map[string]interface{}{
				gateway.FieldMaster: masterPageID,
				gateway.FieldStatus: string(models.StatusMatched),
			},
			Reason: "backfill",
		})
	}

	job.Updated = report.CreatedMasters
	job.Skipped = report.Skipped

	if apply && len(linkUpdates) > 0 {
		wr, werr := s.coordinator(job.ID.String(), models.JobKindBackfill).Write(ctx, linkUpdates)
		report.LinkedRecords = wr.Succeeded
		report.Failed += len(wr.Failed)
		job.Failed = report.Failed
		s.finishJob(job, details, werr)
		if werr != nil {
			return report, werr
		}
		if rerr := s.snap.Refresh(ctx); rerr != nil {
			return report, nil
		}
		return report, nil
	}

	s.finishJob(job, details, nil)
	return report, nil
}

// masterFromRecord seeds a new master from a resolved record. The name
// starts as the canonical address; operators rename it later.
func masterFromRecord(r *models.LocationRecord, masterID int) *models.MasterLocation {
	formatted := normalize.FormatCanonical(r.StructuredAddress)
	name := formatted
	if name == "" {
		name = r.FullAddress
	}
	return &models.MasterLocation{
		MasterID:          masterID,
		Name:              name,
		StructuredAddress: r.StructuredAddress,
		FormattedAddress:  formatted,
		PlaceID:           r.PlaceID,
		Latitude:          r.Latitude,
		Longitude:         r.Longitude,
		Status:            models.StatusMatched,
	}
}
