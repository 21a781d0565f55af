package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/scoutdesk/scoutdesk/internal/cache"
	"github.com/scoutdesk/scoutdesk/internal/gateway"
	"github.com/scoutdesk/scoutdesk/internal/models"
	"github.com/scoutdesk/scoutdesk/internal/writeback"
)

// memStore is an in-memory gateway.Store for pipeline tests
type memStore struct {
	mu      sync.Mutex
	records []models.LocationRecord
	masters []models.MasterLocation
	writes  []gateway.FieldUpdate
	created []models.MasterLocation
}

func (s *memStore) FetchMasters(ctx context.Context) ([]models.MasterLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.MasterLocation, len(s.masters))
	copy(out, s.masters)
	return out, nil
}

func (s *memStore) FetchRecords(ctx context.Context) ([]models.LocationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.LocationRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *memStore) FetchRecordsForTable(ctx context.Context, table string) ([]models.LocationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.LocationRecord
	for _, r := range s.records {
		if r.Table == table {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) UpdateRecord(ctx context.Context, pageID string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, gateway.FieldUpdate{Entity: gateway.EntityRecord, PageID: pageID, Fields: fields})
	for i := range s.records {
		if s.records[i].PageID != pageID {
			continue
		}
		if v, ok := fields[gateway.FieldMaster].(string); ok {
			s.records[i].MasterRef = v
		}
		if v, ok := fields[gateway.FieldStatus].(string); ok {
			s.records[i].Status = models.PipelineStatus(v)
		}
	}
	return nil
}

func (s *memStore) UpdateMaster(ctx context.Context, pageID string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, gateway.FieldUpdate{Entity: gateway.EntityMaster, PageID: pageID, Fields: fields})
	for i := range s.masters {
		if s.masters[i].PageID != pageID {
			continue
		}
		if v, ok := fields[gateway.FieldArchived].(bool); ok {
			s.masters[i].Archived = v
		}
	}
	return nil
}

func (s *memStore) CreateMaster(ctx context.Context, m *models.MasterLocation) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	created := *m
	created.PageID = "created-" + created.Name
	s.created = append(s.created, created)
	s.masters = append(s.masters, created)
	return created.PageID, nil
}

func newTestService(store *memStore) *Service {
	snap := cache.New(store, time.Hour)
	return NewService(store, nil, snap, nil, nil, Options{
		WriteRatePerSec: 1000,
		RetryPolicy:     writeback.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond, BackoffMultiplier: 1},
	})
}

var elmSt = models.StructuredAddress{
	Address1: "12 Elm St",
	City:     "Austin",
	State:    "TX",
	Zip:      "78701",
	Country:  "US",
}

func TestNormalizeDryRunStagesWithoutWriting(t *testing.T) {
	store := &memStore{records: []models.LocationRecord{
		{PageID: "r1", Table: "show-a", StructuredAddress: models.StructuredAddress{
			Address1: "12 Elm St", City: "AUSTIN", State: "Texas", Zip: "78701",
		}},
	}}
	svc := newTestService(store)

	report, err := svc.Normalize(context.Background(), "show-a", "tester", false, false)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if report.Updated != 1 || len(report.Staged) != 1 {
		t.Errorf("Expected 1 staged update, got %+v", report)
	}
	if len(store.writes) != 0 {
		t.Errorf("Dry run must not write, got %d writes", len(store.writes))
	}

	fields := report.Staged[0].Fields
	if fields[gateway.FieldCity] != "Austin" || fields[gateway.FieldState] != "TX" {
		t.Errorf("Bad staged fields: %v", fields)
	}
}

func TestNormalizeApplyIsIdempotent(t *testing.T) {
	store := &memStore{records: []models.LocationRecord{
		{PageID: "r1", Table: "show-a", FullAddress: "12 Elm St, Austin, TX 78701", StructuredAddress: elmSt},
	}}
	svc := newTestService(store)

	report, err := svc.Normalize(context.Background(), "show-a", "tester", false, true)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if report.Unchanged != 1 || report.Updated != 0 {
		t.Errorf("Already-canonical record should be unchanged, got %+v", report)
	}
	if len(store.writes) != 0 {
		t.Errorf("No writes expected, got %d", len(store.writes))
	}
}

func TestMatchApplyWritesLinks(t *testing.T) {
	store := &memStore{
		masters: []models.MasterLocation{{PageID: "m1", PlaceID: "ChIJelm", StructuredAddress: elmSt}},
		records: []models.LocationRecord{{PageID: "r1", Table: "show-a", PlaceID: "ChIJelm", Status: models.StatusUnresolved}},
	}
	svc := newTestService(store)

	report, err := svc.Match(context.Background(), "tester", false, true, true)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if report.Matched != 1 {
		t.Errorf("Expected 1 match, got %+v", report)
	}
	if report.Write == nil || report.Write.Succeeded != 1 {
		t.Errorf("Expected 1 write, got %+v", report.Write)
	}
	if store.records[0].MasterRef != "m1" || store.records[0].Status != models.StatusMatched {
		t.Errorf("Link not persisted: %+v", store.records[0])
	}
}

func TestDuplicateScanMergeFlow(t *testing.T) {
	store := &memStore{
		masters: []models.MasterLocation{
			{PageID: "m1", PlaceID: "ChIJdup", StructuredAddress: elmSt},
			{PageID: "m2", PlaceID: "ChIJdup"},
		},
		records: []models.LocationRecord{
			{PageID: "r1", Table: "show-a", MasterRef: "m2", Status: models.StatusMatched},
		},
	}
	svc := newTestService(store)

	clusters, err := svc.FindDuplicates(context.Background(), "tester", true)
	if err != nil {
		t.Fatalf("FindDuplicates failed: %v", err)
	}
	if len(clusters) != 1 {
		t.Fatalf("Expected 1 cluster, got %d", len(clusters))
	}

	preview, err := svc.PreviewMerge(context.Background(), clusters[0].ID, "")
	if err != nil {
		t.Fatalf("PreviewMerge failed: %v", err)
	}
	if preview.SuggestedPrimary != "m1" {
		t.Errorf("More complete master should be suggested, got %q", preview.SuggestedPrimary)
	}
	if len(store.writes) != 0 {
		t.Error("Preview must not write")
	}

	report, err := svc.ApplyMerge(context.Background(), "tester", clusters[0].ID, "m1", nil)
	if err != nil {
		t.Fatalf("ApplyMerge failed: %v", err)
	}
	if report.Write.Succeeded == 0 {
		t.Errorf("Expected writes, got %+v", report.Write)
	}
	if store.records[0].MasterRef != "m1" {
		t.Errorf("Record should be repointed, got %q", store.records[0].MasterRef)
	}
	for _, m := range store.masters {
		if m.PageID == "m2" && !m.Archived {
			t.Error("Duplicate should be archived")
		}
	}

	// Unknown cluster ids are rejected
	if _, err := svc.ApplyMerge(context.Background(), "tester", "nope", "m1", nil); err == nil {
		t.Error("Unknown cluster should be rejected")
	}
}

func TestBackfillCreatesAndLinks(t *testing.T) {
	store := &memStore{
		records: []models.LocationRecord{
			{PageID: "r1", Table: "show-a", PlaceID: "ChIJnew", StructuredAddress: elmSt, Status: models.StatusReady},
			// Second record for the same place shares the new master
			{PageID: "r2", Table: "show-b", PlaceID: "ChIJnew", Status: models.StatusReady},
			// Coarse-only identity never mints a master
			{PageID: "r3", Table: "show-b", StructuredAddress: models.StructuredAddress{City: "Austin", State: "TX"}},
		},
	}
	svc := newTestService(store)

	report, err := svc.Backfill(context.Background(), "tester", true)
	if err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}
	if report.CreatedMasters != 1 {
		t.Errorf("Expected 1 created master, got %+v", report)
	}
	if report.LinkedRecords != 2 {
		t.Errorf("Both records should link to the shared master, got %+v", report)
	}
	if report.Skipped == 0 {
		t.Error("Coarse-only record should be skipped")
	}
	if len(store.created) != 1 || store.created[0].PlaceID != "ChIJnew" {
		t.Errorf("Bad created master: %+v", store.created)
	}
	if store.records[0].MasterRef == "" || store.records[0].MasterRef != store.records[1].MasterRef {
		t.Error("Records should share the created master")
	}
}

func TestNormalizeMastersSweep(t *testing.T) {
	store := &memStore{masters: []models.MasterLocation{
		{PageID: "m1", MasterID: 1, Name: "City Hall", StructuredAddress: models.StructuredAddress{
			Address1: "12 Elm St", City: "AUSTIN", State: "Texas", Zip: "78701",
		}},
		{PageID: "m2", MasterID: 2, Archived: true, StructuredAddress: elmSt},
	}}
	svc := newTestService(store)

	report, err := svc.Normalize(context.Background(), gateway.TableMasters, "tester", false, true)
	if err != nil {
		t.Fatalf("Master sweep failed: %v", err)
	}
	if report.Updated != 1 {
		t.Errorf("Expected 1 updated master, got %+v", report)
	}
	if report.Skipped != 1 {
		t.Errorf("Archived master should be skipped, got %+v", report)
	}

	if len(store.writes) != 1 {
		t.Fatalf("Expected 1 master write, got %d", len(store.writes))
	}
	w := store.writes[0]
	if w.Entity != gateway.EntityMaster || w.PageID != "m1" {
		t.Fatalf("Write should target the master row: %+v", w)
	}
	if w.Fields[gateway.FieldState] != "TX" {
		t.Errorf("Expected canonical state, got %v", w.Fields[gateway.FieldState])
	}
	if w.Fields[gateway.FieldCity] != "Austin" {
		t.Errorf("Expected title-cased city, got %v", w.Fields[gateway.FieldCity])
	}
	if w.Fields[gateway.FieldFormatted] != "12 Elm St, Austin, TX 78701" {
		t.Errorf("Unexpected formatted address: %v", w.Fields[gateway.FieldFormatted])
	}
	if _, ok := w.Fields[gateway.FieldName]; ok {
		t.Error("Master title is user-owned and must not be written")
	}
}

func TestBackfillDryRunCountsMatchApply(t *testing.T) {
	build := func() *memStore {
		return &memStore{records: []models.LocationRecord{
			{PageID: "r1", Table: "show-a", PlaceID: "ChIJnew", StructuredAddress: elmSt, Status: models.StatusReady},
			{PageID: "r2", Table: "show-b", PlaceID: "ChIJnew", Status: models.StatusReady},
		}}
	}

	dry, err := newTestService(build()).Backfill(context.Background(), "tester", false)
	if err != nil {
		t.Fatalf("Dry run failed: %v", err)
	}
	wet, err := newTestService(build()).Backfill(context.Background(), "tester", true)
	if err != nil {
		t.Fatalf("Apply run failed: %v", err)
	}

	if dry.CreatedMasters != wet.CreatedMasters {
		t.Errorf("Created counts diverge: dry %d, apply %d", dry.CreatedMasters, wet.CreatedMasters)
	}
	if dry.LinkedRecords != wet.LinkedRecords {
		t.Errorf("Linked counts diverge: dry %d, apply %d", dry.LinkedRecords, wet.LinkedRecords)
	}
}
