package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/scoutdesk/scoutdesk/internal/cache"
	"github.com/scoutdesk/scoutdesk/internal/gateway"
	"github.com/scoutdesk/scoutdesk/internal/models"
	"github.com/scoutdesk/scoutdesk/internal/pipeline"
	"github.com/scoutdesk/scoutdesk/internal/writeback"
)

// stubStore is a minimal gateway.Store for handler tests
type stubStore struct {
	mu      sync.Mutex
	records []models.LocationRecord
	masters []models.MasterLocation
	writes  []gateway.FieldUpdate
}

func (s *stubStore) FetchMasters(ctx context.Context) ([]models.MasterLocation, error) {
	return s.masters, nil
}

func (s *stubStore) FetchRecords(ctx context.Context) ([]models.LocationRecord, error) {
	return s.records, nil
}

func (s *stubStore) FetchRecordsForTable(ctx context.Context, table string) ([]models.LocationRecord, error) {
	return s.records, nil
}

func (s *stubStore) UpdateRecord(ctx context.Context, pageID string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, gateway.FieldUpdate{Entity: gateway.EntityRecord, PageID: pageID, Fields: fields})
	return nil
}

func (s *stubStore) UpdateMaster(ctx context.Context, pageID string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, gateway.FieldUpdate{Entity: gateway.EntityMaster, PageID: pageID, Fields: fields})
	return nil
}

func (s *stubStore) CreateMaster(ctx context.Context, m *models.MasterLocation) (string, error) {
	return "created", nil
}

func testRouter(store *stubStore) *Router {
	snap := cache.New(store, time.Hour)
	pipe := pipeline.NewService(store, nil, snap, nil, nil, pipeline.Options{
		WriteRatePerSec: 1000,
		RetryPolicy:     writeback.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond, BackoffMultiplier: 1},
	})
	return &Router{Router: mux.NewRouter(), pipe: pipe}
}

type testEnvelope struct {
	OK      bool            `json:"ok"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("Response is not an envelope: %v (%s)", err, rec.Body.String())
	}
	return env
}

func TestRespondJSONEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	respondJSON(rec, 200, map[string]int{"total": 3})

	env := decodeEnvelope(t, rec)
	if !env.OK {
		t.Error("Success response should set ok")
	}
	if len(env.Data) == 0 {
		t.Error("Success response should carry data")
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Unexpected content type %q", rec.Header().Get("Content-Type"))
	}
}

func TestRespondErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	respondError(rec, 502, "store unavailable")

	env := decodeEnvelope(t, rec)
	if env.OK {
		t.Error("Error response should clear ok")
	}
	if env.Message != "store unavailable" {
		t.Errorf("Expected the message in the envelope, got %q", env.Message)
	}
	if rec.Code != 502 {
		t.Errorf("Expected status 502, got %d", rec.Code)
	}
}

func TestRunMatchWritesByDefault(t *testing.T) {
	store := &stubStore{
		records: []models.LocationRecord{
			{PageID: "r1", Table: "show-a", PlaceID: "p1", Status: models.StatusReady},
		},
		masters: []models.MasterLocation{
			{PageID: "m1", MasterID: 1, PlaceID: "p1"},
		},
	}
	r := testRouter(store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/pipeline/match", strings.NewReader(`{}`))
	r.runMatch(rec, req)

	env := decodeEnvelope(t, rec)
	if !env.OK {
		t.Fatalf("Match run failed: %s", rec.Body.String())
	}
	if len(store.writes) != 1 {
		t.Fatalf("Match should write links without an extra flag, got %d writes", len(store.writes))
	}
	if store.writes[0].Fields[gateway.FieldMaster] != "m1" {
		t.Errorf("Expected a link to m1, got %+v", store.writes[0])
	}
}

func TestRunMatchDryRunStagesOnly(t *testing.T) {
	store := &stubStore{
		records: []models.LocationRecord{
			{PageID: "r1", Table: "show-a", PlaceID: "p1", Status: models.StatusReady},
		},
		masters: []models.MasterLocation{
			{PageID: "m1", MasterID: 1, PlaceID: "p1"},
		},
	}
	r := testRouter(store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/pipeline/match", strings.NewReader(`{"dry_run":true}`))
	r.runMatch(rec, req)

	env := decodeEnvelope(t, rec)
	if !env.OK {
		t.Fatalf("Dry run failed: %s", rec.Body.String())
	}
	if len(store.writes) != 0 {
		t.Errorf("Dry run must not write, got %d writes", len(store.writes))
	}
}
