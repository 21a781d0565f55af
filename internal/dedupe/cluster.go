// Package dedupe clusters master locations that represent the same physical
// place and computes operator-confirmed merge plans.
package dedupe

import (
	"sort"

	"github.com/google/uuid"
	"github.com/scoutdesk/scoutdesk/internal/identity"
	"github.com/scoutdesk/scoutdesk/internal/models"
)

// Matching reasons recorded on each cluster for operator review
const (
	ReasonPlaceID        = "place_id"
	ReasonFullAddress    = "full-address"
	ReasonAddressNoZip   = "address-without-zip"
	ReasonNearCoordinate = "near-coordinate"
)

// DefaultProximityMeters is the coordinate-proximity clustering threshold.
// Kept as a named constant so tests can exercise the boundary precisely.
const DefaultProximityMeters = 50.0

// Cluster is an ephemeral grouping of masters believed to be one place
type Cluster struct {
	ID      string                  `json:"id"`
	Reason  string                  `json:"reason"`
	Members []models.MasterLocation `json:"members"`
}

// MemberIDs returns the page ids of all cluster members
func (c Cluster) MemberIDs() []string {
	ids := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		ids = append(ids, m.PageID)
	}
	return ids
}

// FindClusters groups masters that share a place_id, an identical canonical
// address, an identical address-without-zip, or coordinates within
// proximityMeters of each other. A master lands in at most one cluster per
// run: the first tier that claims it wins. Archived masters are skipped.
// This step performs no writes.
func FindClusters(masters []models.MasterLocation, proximityMeters float64) []Cluster {
	if proximityMeters <= 0 {
		proximityMeters = DefaultProximityMeters
	}

	active := make([]*models.MasterLocation, 0, len(masters))
	for i := range masters {
		if !masters[i].Archived {
			active = append(active, &masters[i])
		}
	}

	claimed := make(map[string]bool)
	var clusters []Cluster

	group := func(keyOf func(*models.MasterLocation) string, reason string) {
		buckets := make(map[string][]*models.MasterLocation)
		var order []string
		for _, m := range active {
			if claimed[m.PageID] {
				continue
			}
			k := keyOf(m)
			if k == "" {
				continue
			}
			if _, seen := buckets[k]; !seen {
				order = append(order, k)
			}
			buckets[k] = append(buckets[k], m)
		}
		for _, k := range order {
			members := buckets[k]
			if len(members) < 2 {
				continue
			}
			c := Cluster{ID: uuid.New().String(), Reason: reason}
			for _, m := range members {
				claimed[m.PageID] = true
				c.Members = append(c.Members, *m)
			}
			clusters = append(clusters, c)
		}
	}

	group(func(m *models.MasterLocation) string {
		k := identity.Resolve(models.StructuredAddress{}, m.PlaceID)
		if k.Kind != identity.KindPlaceID {
			return ""
		}
		return k.Value
	}, ReasonPlaceID)

	group(func(m *models.MasterLocation) string {
		k := identity.AddressHashKey(m.StructuredAddress)
		if k.Zero() {
			return ""
		}
		return k.Value
	}, ReasonFullAddress)

	group(func(m *models.MasterLocation) string {
		k := identity.AddressHashKeyNoZip(m.StructuredAddress)
		if k.Zero() {
			return ""
		}
		return k.Value
	}, ReasonAddressNoZip)

	clusters = append(clusters, proximityClusters(active, claimed, proximityMeters)...)

	return clusters
}

// proximityClusters sweeps the remaining unclaimed masters for coordinate
// neighbors. Transitive closure: A near B and B near C puts all three in
// one cluster even if A and C are slightly farther apart.
func proximityClusters(active []*models.MasterLocation, claimed map[string]bool, threshold float64) []Cluster {
	var pool []*models.MasterLocation
	for _, m := range active {
		if !claimed[m.PageID] && m.HasCoordinates() {
			pool = append(pool, m)
		}
	}

	visited := make(map[string]bool)
	var clusters []Cluster

	for i, seed := range pool {
		if visited[seed.PageID] {
			continue
		}
		members := []*models.MasterLocation{seed}
		visited[seed.PageID] = true

		// Breadth-first expansion over the remaining pool
		for cursor := 0; cursor < len(members); cursor++ {
			cur := members[cursor]
			for j := i + 1; j < len(pool); j++ {
				cand := pool[j]
				if visited[cand.PageID] {
					continue
				}
				if DistanceMeters(cur.Latitude, cur.Longitude, cand.Latitude, cand.Longitude) < threshold {
					visited[cand.PageID] = true
					members = append(members, cand)
				}
			}
		}

		if len(members) < 2 {
			continue
		}
		c := Cluster{ID: uuid.New().String(), Reason: ReasonNearCoordinate}
		for _, m := range members {
			claimed[m.PageID] = true
			c.Members = append(c.Members, *m)
		}
		clusters = append(clusters, c)
	}

	return clusters
}

// SuggestPrimary picks the default merge survivor: a member with a place_id
// first, then the most complete structured fields, then the earliest created.
// The operator may override the suggestion.
func SuggestPrimary(c Cluster) string {
	if len(c.Members) == 0 {
		return ""
	}
	members := make([]models.MasterLocation, len(c.Members))
	copy(members, c.Members)

	sort.SliceStable(members, func(i, j int) bool {
		a, b := members[i], members[j]
		aHasID, bHasID := a.PlaceID != "", b.PlaceID != ""
		if aHasID != bHasID {
			return aHasID
		}
		ac, bc := a.Completeness(), b.Completeness()
		if ac != bc {
			return ac > bc
		}
		return a.CreatedTime.Before(b.CreatedTime)
	})

	return members[0].PageID
}
