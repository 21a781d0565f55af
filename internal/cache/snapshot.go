// Package cache holds a time-bounded, refreshable snapshot of canonical
// and per-production records so batch operations do not re-fetch the whole
// store on every call.
package cache

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/scoutdesk/scoutdesk/internal/gateway"
	"github.com/scoutdesk/scoutdesk/internal/models"
)

// DefaultTTL bounds how long a snapshot is served without a refresh
const DefaultTTL = 10 * time.Minute

// Snapshot is an explicit cache object passed by injection to callers.
// Staleness within the TTL is tolerated by design; callers needing
// freshness request it with force.
type Snapshot struct {
	store gateway.Store
	ttl   time.Duration

	mu        sync.Mutex
	records   []models.LocationRecord
	masters   []models.MasterLocation
	fetchedAt time.Time
}

// New creates a Snapshot backed by the given store. ttl <= 0 uses DefaultTTL.
func New(store gateway.Store, ttl time.Duration) *Snapshot {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Snapshot{store: store, ttl: ttl}
}

// FetchedAt returns when the current snapshot was loaded
func (s *Snapshot) FetchedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchedAt
}

// Stale reports whether the snapshot is empty or past its TTL
func (s *Snapshot) Stale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale()
}

func (s *Snapshot) stale() bool {
	return s.fetchedAt.IsZero() || time.Since(s.fetchedAt) > s.ttl
}

// Get returns the cached records and masters, refreshing first when the
// snapshot is stale or force is set. A forced call does not shorten the
// snapshot's validity for other callers; it simply re-fetches.
func (s *Snapshot) Get(ctx context.Context, force bool) ([]models.LocationRecord, []models.MasterLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if force || s.stale() {
		if err := s.refresh(ctx); err != nil {
			return nil, nil, err
		}
	}
	return s.records, s.masters, nil
}

// Refresh re-fetches both tables unconditionally
func (s *Snapshot) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh(ctx)
}

func (s *Snapshot) refresh(ctx context.Context) error {
	start := time.Now()

	masters, err := s.store.FetchMasters(ctx)
	if err != nil {
		return err
	}
	records, err := s.store.FetchRecords(ctx)
	if err != nil {
		return err
	}

	s.masters = masters
	s.records = records
	s.fetchedAt = time.Now()

	log.Printf("🔄 Cache refreshed: %d masters, %d records in %s", len(masters), len(records), time.Since(start).Round(time.Millisecond))
	return nil
}
