// Package match links per-production location records to canonical master
// locations using the tiered identity-key strategy.
package match

import (
	"fmt"

	"github.com/scoutdesk/scoutdesk/internal/gateway"
	"github.com/scoutdesk/scoutdesk/internal/identity"
	"github.com/scoutdesk/scoutdesk/internal/models"
)

// Outcome of matching one record
type Outcome string

const (
	OutcomeMatched    Outcome = "matched"
	OutcomeUnresolved Outcome = "unresolved"
	OutcomeUnchanged  Outcome = "unchanged"
)

// Result is the per-record outcome of a match run
type Result struct {
	RecordPageID string                `json:"record_page_id"`
	ProdLocID    int                   `json:"prod_loc_id"`
	Table        string                `json:"table,omitempty"`
	Outcome      Outcome               `json:"outcome"`
	MasterPageID string                `json:"master_page_id,omitempty"`
	Status       models.PipelineStatus `json:"status"`
	Reason       string                `json:"reason"`

	// Changed reports whether the outcome requires an external write.
	// Re-running match on unchanged data stages zero writes.
	Changed bool `json:"changed"`
}

// index holds the per-tier master lookups for one run. Archived masters
// never participate.
type index struct {
	byPlaceID map[string][]*models.MasterLocation
	byHash    map[string][]*models.MasterLocation
	byCoarse  map[string][]*models.MasterLocation
}

func buildIndex(masters []models.MasterLocation) *index {
	ix := &index{
		byPlaceID: make(map[string][]*models.MasterLocation),
		byHash:    make(map[string][]*models.MasterLocation),
		byCoarse:  make(map[string][]*models.MasterLocation),
	}
	for i := range masters {
		m := &masters[i]
		if m.Archived {
			continue
		}
		for _, k := range identity.ResolveAll(m.StructuredAddress, m.PlaceID) {
			switch k.Kind {
			case identity.KindPlaceID:
				ix.byPlaceID[k.Value] = append(ix.byPlaceID[k.Value], m)
			case identity.KindAddressHash:
				ix.byHash[k.Value] = append(ix.byHash[k.Value], m)
			case identity.KindCoarse:
				ix.byCoarse[k.Value] = append(ix.byCoarse[k.Value], m)
			}
		}
	}
	return ix
}

func (ix *index) candidates(k identity.Key) []*models.MasterLocation {
	switch k.Kind {
	case identity.KindPlaceID:
		return ix.byPlaceID[k.Value]
	case identity.KindAddressHash:
		return ix.byHash[k.Value]
	case identity.KindCoarse:
		return ix.byCoarse[k.Value]
	}
	return nil
}

// MatchAll evaluates every record against the master list and returns one
// result per record, in input order. It performs no writes itself.
//
// With force=false a record that already carries a master link is skipped
// outright. With force=true the link is recomputed; identical outcomes are
// reported as unchanged so no redundant external write is staged.
func MatchAll(records []models.LocationRecord, masters []models.MasterLocation, force bool) []Result {
	ix := buildIndex(masters)
	results := make([]Result, 0, len(records))
	for i := range records {
		results = append(results, matchOne(&records[i], ix, force))
	}
	return results
}

func matchOne(r *models.LocationRecord, ix *index, force bool) Result {
	res := Result{
		RecordPageID: r.PageID,
		ProdLocID:    r.ProdLocID,
		Table:        r.Table,
	}

	if !force && r.MasterRef != "" {
		res.Outcome = OutcomeUnchanged
		res.MasterPageID = r.MasterRef
		res.Status = r.Status
		res.Reason = "already linked"
		return res
	}

	keys := identity.ResolveAll(r.StructuredAddress, r.PlaceID)
	if len(keys) == 0 {
		res.Outcome = OutcomeUnresolved
		res.Status = models.StatusUnresolved
		res.Reason = "no usable identity key"
		res.Changed = r.MasterRef != "" || r.Status != models.StatusUnresolved
		return res
	}

	var master *models.MasterLocation
	var matchedKind identity.Kind
	ambiguous := map[identity.Kind]int{}

	for _, k := range keys {
		cands := ix.candidates(k)
		switch {
		case len(cands) == 1:
			master = cands[0]
			matchedKind = k.Kind
		case len(cands) > 1:
			// Ambiguity at a tier never resolves silently: fall through
			ambiguous[k.Kind] = len(cands)
			continue
		default:
			continue
		}
		break
	}

	if master != nil {
		res.MasterPageID = master.PageID
		res.Status = models.StatusMatched
		switch matchedKind {
		case identity.KindPlaceID:
			res.Reason = "unique place_id match"
		case identity.KindAddressHash:
			res.Reason = "unique address match"
		case identity.KindCoarse:
			res.Reason = "coarse city/state/zip match (low confidence)"
		}
		if r.MasterRef == master.PageID && r.Status == models.StatusMatched {
			res.Outcome = OutcomeUnchanged
			res.Reason = "recomputed link unchanged"
			return res
		}
		res.Outcome = OutcomeMatched
		res.Changed = true
		return res
	}

	// All tiers failed. A record whose place_id found no unique master is
	// Ready: it has a resolvable identity but no confirmed master yet.
	if r.PlaceID != "" {
		res.Status = models.StatusReady
	} else {
		res.Status = models.StatusUnresolved
	}
	res.Outcome = OutcomeUnresolved
	if n, ok := ambiguous[identity.KindPlaceID]; ok {
		res.Reason = fmt.Sprintf("ambiguous: %d masters share place_id", n)
	} else if n, ok := ambiguous[identity.KindAddressHash]; ok {
		res.Reason = fmt.Sprintf("ambiguous: %d masters share address", n)
	} else if n, ok := ambiguous[identity.KindCoarse]; ok {
		res.Reason = fmt.Sprintf("ambiguous: %d masters share city/state/zip", n)
	} else {
		res.Reason = "no candidate master"
	}
	res.Changed = r.MasterRef != "" || r.Status != res.Status
	return res
}

// Updates stages one external write per changed result. Unchanged results
// produce nothing.
func Updates(results []Result) []gateway.FieldUpdate {
	var updates []gateway.FieldUpdate
	for _, res := range results {
		if !res.Changed {
			continue
		}
		fields := map[string]interface{}{
			gateway.FieldStatus: string(res.Status),
			gateway.FieldMaster: res.MasterPageID,
		}
		updates = append(updates, gateway.FieldUpdate{
			Entity: gateway.EntityRecord,
			PageID: res.RecordPageID,
			Table:  res.Table,
			Fields: fields,
			Reason: res.Reason,
		})
	}
	return updates
}
