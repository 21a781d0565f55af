package dedupe

import (
	"fmt"
	"strings"

	"github.com/scoutdesk/scoutdesk/internal/gateway"
	"github.com/scoutdesk/scoutdesk/internal/models"
)

// FieldFill stages one value copied into an empty field on the primary
type FieldFill struct {
	Field      string      `json:"field"`
	Value      interface{} `json:"value"`
	FromMaster string      `json:"from_master"`
}

// PointerRewrite stages one record's master link moving to the primary
type PointerRewrite struct {
	RecordPageID string `json:"record_page_id"`
	ProdLocID    int    `json:"prod_loc_id"`
	Table        string `json:"table,omitempty"`
	FromMaster   string `json:"from_master"`
	ToMaster     string `json:"to_master"`
}

// MergePlan is the computed, previewable set of operations that collapses a
// cluster into one primary. It is pure data and performs no writes itself.
type MergePlan struct {
	ClusterID       string           `json:"cluster_id"`
	PrimaryPageID   string           `json:"primary_page_id"`
	DuplicateIDs    []string         `json:"duplicate_ids"`
	FieldFills      []FieldFill      `json:"field_fills"`
	PointerRewrites []PointerRewrite `json:"pointer_rewrites"`
	Archive         []string         `json:"archive"`
}

// PlanMerge computes the merge plan for a cluster given the operator's
// primary selection. Duplicates default to every non-primary member.
// LocationRecords are needed to stage pointer rewrites.
func PlanMerge(cluster Cluster, primaryID string, duplicateIDs []string, records []models.LocationRecord) (*MergePlan, error) {
	byID := make(map[string]*models.MasterLocation, len(cluster.Members))
	for i := range cluster.Members {
		byID[cluster.Members[i].PageID] = &cluster.Members[i]
	}

	primary, ok := byID[primaryID]
	if !ok {
		return nil, fmt.Errorf("primary %s is not a member of cluster %s", primaryID, cluster.ID)
	}

	if len(duplicateIDs) == 0 {
		for _, m := range cluster.Members {
			if m.PageID != primaryID {
				duplicateIDs = append(duplicateIDs, m.PageID)
			}
		}
	}

	plan := &MergePlan{
		ClusterID:     cluster.ID,
		PrimaryPageID: primaryID,
		DuplicateIDs:  duplicateIDs,
	}

	filled := make(map[string]bool)
	for _, dupID := range duplicateIDs {
		if dupID == primaryID {
			return nil, fmt.Errorf("primary %s listed among its own duplicates", primaryID)
		}
		dup, ok := byID[dupID]
		if !ok {
			return nil, fmt.Errorf("duplicate %s is not a member of cluster %s", dupID, cluster.ID)
		}

		for _, ff := range fillableFields(primary, dup) {
			if filled[ff.Field] {
				continue // first duplicate with a value wins
			}
			filled[ff.Field] = true
			plan.FieldFills = append(plan.FieldFills, ff)
		}

		plan.Archive = append(plan.Archive, dupID)
	}

	dupSet := make(map[string]bool, len(duplicateIDs))
	for _, id := range duplicateIDs {
		dupSet[id] = true
	}
	for i := range records {
		r := &records[i]
		if r.MasterRef == "" || !dupSet[r.MasterRef] {
			continue
		}
		plan.PointerRewrites = append(plan.PointerRewrites, PointerRewrite{
			RecordPageID: r.PageID,
			ProdLocID:    r.ProdLocID,
			Table:        r.Table,
			FromMaster:   r.MasterRef,
			ToMaster:     primaryID,
		})
	}

	return plan, nil
}

// fillableFields returns the structured/geo fields empty on the primary but
// non-empty on the duplicate. User-owned fields (name, practical name,
// notes) are never staged.
func fillableFields(primary, dup *models.MasterLocation) []FieldFill {
	var fills []FieldFill

	str := func(field, pv, dv string) {
		if strings.TrimSpace(pv) == "" && strings.TrimSpace(dv) != "" {
			fills = append(fills, FieldFill{Field: field, Value: strings.TrimSpace(dv), FromMaster: dup.PageID})
		}
	}

	str(gateway.FieldAddress1, primary.Address1, dup.Address1)
	str(gateway.FieldAddress2, primary.Address2, dup.Address2)
	str(gateway.FieldAddress3, primary.Address3, dup.Address3)
	str(gateway.FieldCity, primary.City, dup.City)
	str(gateway.FieldState, primary.State, dup.State)
	str(gateway.FieldZip, primary.Zip, dup.Zip)
	str(gateway.FieldCountry, primary.Country, dup.Country)
	str(gateway.FieldCounty, primary.County, dup.County)
	str(gateway.FieldBorough, primary.Borough, dup.Borough)
	str(gateway.FieldPlaceID, primary.PlaceID, dup.PlaceID)
	str(gateway.FieldFormatted, primary.FormattedAddress, dup.FormattedAddress)
	str(gateway.FieldGoogleFormatted, primary.GoogleFormatted, dup.GoogleFormatted)
	str(gateway.FieldMapURL, primary.MapURL, dup.MapURL)
	str(gateway.FieldBusinessStatus, primary.BusinessStatus, dup.BusinessStatus)

	if !primary.HasCoordinates() && dup.HasCoordinates() {
		fills = append(fills,
			FieldFill{Field: gateway.FieldLatitude, Value: dup.Latitude, FromMaster: dup.PageID},
			FieldFill{Field: gateway.FieldLongitude, Value: dup.Longitude, FromMaster: dup.PageID},
		)
	}
	if len(primary.Categories) == 0 && len(dup.Categories) > 0 {
		fills = append(fills, FieldFill{Field: gateway.FieldCategories, Value: dup.Categories, FromMaster: dup.PageID})
	}

	return fills
}

// ApplyUpdates turns a plan into ordered store writes against the current
// state: field-fills on the primary first, then pointer rewrites, then
// archival. Archival last keeps dependents from ever pointing at an
// archived master mid-failure.
//
// Idempotence comes from checking current state, not from assuming first
// success: already-filled fields, already-repointed records and
// already-archived masters stage nothing. Applying an applied plan yields
// an empty slice.
func ApplyUpdates(plan *MergePlan, masters []models.MasterLocation, records []models.LocationRecord) []gateway.FieldUpdate {
	masterByID := make(map[string]*models.MasterLocation, len(masters))
	for i := range masters {
		masterByID[masters[i].PageID] = &masters[i]
	}
	recordByID := make(map[string]*models.LocationRecord, len(records))
	for i := range records {
		recordByID[records[i].PageID] = &records[i]
	}

	var updates []gateway.FieldUpdate

	if primary := masterByID[plan.PrimaryPageID]; primary != nil {
		fields := make(map[string]interface{})
		for _, ff := range plan.FieldFills {
			if fieldStillEmpty(primary, ff.Field) {
				fields[ff.Field] = ff.Value
			}
		}
		if len(fields) > 0 {
			updates = append(updates, gateway.FieldUpdate{
				Entity: gateway.EntityMaster,
				PageID: plan.PrimaryPageID,
				Table:  gateway.TableMasters,
				Fields: fields,
				Reason: "merge field fill",
			})
		}
	}

	for _, pr := range plan.PointerRewrites {
		rec := recordByID[pr.RecordPageID]
		if rec != nil && rec.MasterRef == pr.ToMaster {
			continue // already repointed
		}
		updates = append(updates, gateway.FieldUpdate{
			Entity: gateway.EntityRecord,
			PageID: pr.RecordPageID,
			Table:  pr.Table,
			Fields: map[string]interface{}{gateway.FieldMaster: pr.ToMaster},
			Reason: fmt.Sprintf("merge pointer rewrite from %s", pr.FromMaster),
		})
	}

	for _, dupID := range plan.Archive {
		if m := masterByID[dupID]; m != nil && m.Archived {
			continue // already archived
		}
		updates = append(updates, gateway.FieldUpdate{
			Entity: gateway.EntityMaster,
			PageID: dupID,
			Table:  gateway.TableMasters,
			Fields: map[string]interface{}{gateway.FieldArchived: true},
			Reason: fmt.Sprintf("merged into %s", plan.PrimaryPageID),
		})
	}

	return updates
}

func fieldStillEmpty(m *models.MasterLocation, field string) bool {
	switch field {
	case gateway.FieldAddress1:
		return strings.TrimSpace(m.Address1) == ""
	case gateway.FieldAddress2:
		return strings.TrimSpace(m.Address2) == ""
	case gateway.FieldAddress3:
		return strings.TrimSpace(m.Address3) == ""
	case gateway.FieldCity:
		return strings.TrimSpace(m.City) == ""
	case gateway.FieldState:
		return strings.TrimSpace(m.State) == ""
	case gateway.FieldZip:
		return strings.TrimSpace(m.Zip) == ""
	case gateway.FieldCountry:
		return strings.TrimSpace(m.Country) == ""
	case gateway.FieldCounty:
		return strings.TrimSpace(m.County) == ""
	case gateway.FieldBorough:
		return strings.TrimSpace(m.Borough) == ""
	case gateway.FieldPlaceID:
		return strings.TrimSpace(m.PlaceID) == ""
	case gateway.FieldFormatted:
		return strings.TrimSpace(m.FormattedAddress) == ""
	case gateway.FieldGoogleFormatted:
		return strings.TrimSpace(m.GoogleFormatted) == ""
	case gateway.FieldMapURL:
		return strings.TrimSpace(m.MapURL) == ""
	case gateway.FieldBusinessStatus:
		return strings.TrimSpace(m.BusinessStatus) == ""
	case gateway.FieldLatitude, gateway.FieldLongitude:
		return !m.HasCoordinates()
	case gateway.FieldCategories:
		return len(m.Categories) == 0
	}
	return false
}
