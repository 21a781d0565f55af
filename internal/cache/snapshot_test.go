package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scoutdesk/scoutdesk/internal/models"
)

// countingStore tracks fetches and returns growing data so cache hits are
// distinguishable from refreshes
type countingStore struct {
	fetches int
	err     error
}

func (s *countingStore) FetchMasters(ctx context.Context) ([]models.MasterLocation, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.fetches++
	return make([]models.MasterLocation, s.fetches), nil
}

func (s *countingStore) FetchRecords(ctx context.Context) ([]models.LocationRecord, error) {
	return nil, s.err
}

func (s *countingStore) FetchRecordsForTable(ctx context.Context, table string) ([]models.LocationRecord, error) {
	return nil, nil
}

func (s *countingStore) UpdateRecord(ctx context.Context, pageID string, fields map[string]interface{}) error {
	return nil
}

func (s *countingStore) UpdateMaster(ctx context.Context, pageID string, fields map[string]interface{}) error {
	return nil
}

func (s *countingStore) CreateMaster(ctx context.Context, m *models.MasterLocation) (string, error) {
	return "", nil
}

func TestSnapshotServesWithinTTL(t *testing.T) {
	store := &countingStore{}
	snap := New(store, time.Hour)

	_, first, err := snap.Get(context.Background(), false)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	_, second, err := snap.Get(context.Background(), false)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if store.fetches != 1 {
		t.Errorf("Second Get within TTL should hit the cache, got %d fetches", store.fetches)
	}
	if len(first) != len(second) {
		t.Error("Cached data changed between calls")
	}
}

func TestSnapshotForceRefreshes(t *testing.T) {
	store := &countingStore{}
	snap := New(store, time.Hour)

	if _, _, err := snap.Get(context.Background(), false); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, _, err := snap.Get(context.Background(), true); err != nil {
		t.Fatalf("Forced Get failed: %v", err)
	}
	if store.fetches != 2 {
		t.Errorf("Force should re-fetch, got %d fetches", store.fetches)
	}
}

func TestSnapshotExpires(t *testing.T) {
	store := &countingStore{}
	snap := New(store, 10*time.Millisecond)

	if _, _, err := snap.Get(context.Background(), false); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if snap.Stale() {
		t.Error("Fresh snapshot reported stale")
	}

	time.Sleep(20 * time.Millisecond)
	if !snap.Stale() {
		t.Error("Expired snapshot reported fresh")
	}
	if _, _, err := snap.Get(context.Background(), false); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if store.fetches != 2 {
		t.Errorf("Stale Get should refresh, got %d fetches", store.fetches)
	}
}

func TestSnapshotRefreshErrorPropagates(t *testing.T) {
	store := &countingStore{err: errors.New("store down")}
	snap := New(store, time.Hour)

	if _, _, err := snap.Get(context.Background(), false); err == nil {
		t.Error("Expected refresh error to surface")
	}
	if !snap.Stale() {
		t.Error("Failed refresh must not mark the snapshot fresh")
	}
}
