package notion

import (
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/scoutdesk/scoutdesk/internal/gateway"
	"github.com/scoutdesk/scoutdesk/internal/models"
)

func rich(s string) *notionapi.RichTextProperty {
	return &notionapi.RichTextProperty{
		RichText: []notionapi.RichText{{PlainText: s}},
	}
}

func TestMasterFromPage(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	page := notionapi.Page{
		ID:          "page-1",
		CreatedTime: created,
		Properties: notionapi.Properties{
			gateway.FieldName: &notionapi.TitleProperty{
				Title: []notionapi.RichText{{PlainText: "Harbor Warehouse"}},
			},
			gateway.FieldMasterID: &notionapi.NumberProperty{Number: 42},
			gateway.FieldAddress1: rich("456 Oak Ave"),
			gateway.FieldCity:     rich("Portland"),
			gateway.FieldState:    rich("OR"),
			gateway.FieldZip:      rich("97205"),
			gateway.FieldCountry:  rich("US"),
			gateway.FieldPlaceID:  rich("ChIJabc"),
			gateway.FieldLatitude: &notionapi.NumberProperty{Number: 45.52},
			gateway.FieldStatus: &notionapi.SelectProperty{
				Select: notionapi.Option{Name: "Matched"},
			},
			gateway.FieldArchived: &notionapi.CheckboxProperty{Checkbox: true},
			gateway.FieldCategories: &notionapi.MultiSelectProperty{
				MultiSelect: []notionapi.Option{{Name: "warehouse"}, {Name: "industrial"}},
			},
		},
	}

	m := masterFromPage(page)
	if m.PageID != "page-1" || m.MasterID != 42 {
		t.Errorf("Bad identity mapping: %+v", m)
	}
	if m.Name != "Harbor Warehouse" {
		t.Errorf("Bad title mapping: %q", m.Name)
	}
	if m.Address1 != "456 Oak Ave" || m.City != "Portland" || m.State != "OR" {
		t.Errorf("Bad address mapping: %+v", m.StructuredAddress)
	}
	if m.Status != models.StatusMatched {
		t.Errorf("Bad status mapping: %q", m.Status)
	}
	if !m.Archived {
		t.Error("Archived checkbox not mapped")
	}
	if len(m.Categories) != 2 {
		t.Errorf("Bad categories: %v", m.Categories)
	}
	if !m.CreatedTime.Equal(created) {
		t.Errorf("Created time not carried: %v", m.CreatedTime)
	}
}

func TestRecordFromPage(t *testing.T) {
	page := notionapi.Page{
		ID: "page-r1",
		Properties: notionapi.Properties{
			gateway.FieldProdLocID:   &notionapi.NumberProperty{Number: 7},
			gateway.FieldFullAddress: rich("456 Oak Ave, Portland, OR 97205"),
			gateway.FieldMaster: &notionapi.RelationProperty{
				Relation: []notionapi.Relation{{ID: "master-1"}},
			},
			gateway.FieldStatus: &notionapi.SelectProperty{
				Select: notionapi.Option{Name: "Ready"},
			},
		},
	}

	r := recordFromPage(page, "show-a", "prod-1")
	if r.PageID != "page-r1" || r.ProdLocID != 7 {
		t.Errorf("Bad identity mapping: %+v", r)
	}
	if r.Table != "show-a" || r.ProductionID != "prod-1" {
		t.Errorf("Bad table attribution: %+v", r)
	}
	if r.MasterRef != "master-1" {
		t.Errorf("Bad relation mapping: %q", r.MasterRef)
	}
	if r.Status != models.StatusReady {
		t.Errorf("Bad status mapping: %q", r.Status)
	}
}

func TestParseStatusDefaultsUnresolved(t *testing.T) {
	for _, s := range []string{"", "garbage", "unresolved"} {
		if got := parseStatus(s); got != models.StatusUnresolved {
			t.Errorf("parseStatus(%q) = %q", s, got)
		}
	}
}

func TestPropertiesFromFields(t *testing.T) {
	props := propertiesFromFields(map[string]interface{}{
		gateway.FieldCity:     "Portland",
		gateway.FieldLatitude: 45.52,
		gateway.FieldStatus:   "Matched",
		gateway.FieldArchived: true,
		gateway.FieldMaster:   "master-1",
	})

	if p, ok := props[gateway.FieldCity].(*notionapi.RichTextProperty); !ok || p.RichText[0].Text.Content != "Portland" {
		t.Errorf("City should be rich text, got %#v", props[gateway.FieldCity])
	}
	if p, ok := props[gateway.FieldLatitude].(*notionapi.NumberProperty); !ok || p.Number != 45.52 {
		t.Errorf("Latitude should be a number, got %#v", props[gateway.FieldLatitude])
	}
	if p, ok := props[gateway.FieldStatus].(*notionapi.SelectProperty); !ok || p.Select.Name != "Matched" {
		t.Errorf("Status should be a select, got %#v", props[gateway.FieldStatus])
	}
	if p, ok := props[gateway.FieldArchived].(*notionapi.CheckboxProperty); !ok || !p.Checkbox {
		t.Errorf("Archived should be a checkbox, got %#v", props[gateway.FieldArchived])
	}
	if p, ok := props[gateway.FieldMaster].(*notionapi.RelationProperty); !ok || len(p.Relation) != 1 || string(p.Relation[0].ID) != "master-1" {
		t.Errorf("Master link should be a relation, got %#v", props[gateway.FieldMaster])
	}
}

func TestValidateFields(t *testing.T) {
	ok := map[string]interface{}{gateway.FieldStatus: "Matched"}
	if err := validateFields(ok, recordWritable); err != nil {
		t.Errorf("Canonical field rejected: %v", err)
	}

	bad := map[string]interface{}{"Nickname": "x"}
	err := validateFields(bad, recordWritable)
	if err == nil {
		t.Fatal("Unknown field should be rejected")
	}

	// Notes is user-owned and must not be writable on masters
	if err := validateFields(map[string]interface{}{gateway.FieldNotes: "x"}, masterWritable); err == nil {
		t.Error("User-owned field should be rejected")
	}
}
