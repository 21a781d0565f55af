package notion

import (
	"strings"

	"github.com/jomei/notionapi"
	"github.com/scoutdesk/scoutdesk/internal/gateway"
	"github.com/scoutdesk/scoutdesk/internal/models"
)

// plainText flattens a rich-text array to its plain content
func plainText(rts []notionapi.RichText) string {
	var b strings.Builder
	for _, rt := range rts {
		b.WriteString(rt.PlainText)
	}
	return strings.TrimSpace(b.String())
}

func propTitle(props notionapi.Properties, name string) string {
	if p, ok := props[name].(*notionapi.TitleProperty); ok {
		return plainText(p.Title)
	}
	return ""
}

func propText(props notionapi.Properties, name string) string {
	switch p := props[name].(type) {
	case *notionapi.RichTextProperty:
		return plainText(p.RichText)
	case *notionapi.TitleProperty:
		return plainText(p.Title)
	case *notionapi.URLProperty:
		return strings.TrimSpace(p.URL)
	case *notionapi.SelectProperty:
		return strings.TrimSpace(p.Select.Name)
	}
	return ""
}

func propNumber(props notionapi.Properties, name string) float64 {
	if p, ok := props[name].(*notionapi.NumberProperty); ok {
		return p.Number
	}
	return 0
}

func propCheckbox(props notionapi.Properties, name string) bool {
	if p, ok := props[name].(*notionapi.CheckboxProperty); ok {
		return p.Checkbox
	}
	return false
}

func propRelationFirst(props notionapi.Properties, name string) string {
	if p, ok := props[name].(*notionapi.RelationProperty); ok && len(p.Relation) > 0 {
		return string(p.Relation[0].ID)
	}
	return ""
}

func propMultiSelect(props notionapi.Properties, name string) []string {
	if p, ok := props[name].(*notionapi.MultiSelectProperty); ok {
		var vals []string
		for _, opt := range p.MultiSelect {
			if opt.Name != "" {
				vals = append(vals, opt.Name)
			}
		}
		return vals
	}
	return nil
}

func parseStatus(s string) models.PipelineStatus {
	switch models.PipelineStatus(s) {
	case models.StatusReady, models.StatusMatched:
		return models.PipelineStatus(s)
	default:
		return models.StatusUnresolved
	}
}

func structuredFromProps(props notionapi.Properties) models.StructuredAddress {
	return models.StructuredAddress{
		Address1: propText(props, gateway.FieldAddress1),
		Address2: propText(props, gateway.FieldAddress2),
		Address3: propText(props, gateway.FieldAddress3),
		City:     propText(props, gateway.FieldCity),
		State:    propText(props, gateway.FieldState),
		Zip:      propText(props, gateway.FieldZip),
		Country:  propText(props, gateway.FieldCountry),
		County:   propText(props, gateway.FieldCounty),
		Borough:  propText(props, gateway.FieldBorough),
	}
}

// recordFromPage maps one per-production row to a LocationRecord
func recordFromPage(page notionapi.Page, table, productionID string) models.LocationRecord {
	props := page.Properties
	return models.LocationRecord{
		PageID:            string(page.ID),
		ProdLocID:         int(propNumber(props, gateway.FieldProdLocID)),
		ProductionID:      productionID,
		Table:             table,
		FullAddress:       propText(props, gateway.FieldFullAddress),
		StructuredAddress: structuredFromProps(props),
		PlaceID:           propText(props, gateway.FieldPlaceID),
		Latitude:          propNumber(props, gateway.FieldLatitude),
		Longitude:         propNumber(props, gateway.FieldLongitude),
		MasterRef:         propRelationFirst(props, gateway.FieldMaster),
		Status:            parseStatus(propText(props, gateway.FieldStatus)),
	}
}

// masterFromPage maps one master row to a MasterLocation
func masterFromPage(page notionapi.Page) models.MasterLocation {
	props := page.Properties
	return models.MasterLocation{
		PageID:            string(page.ID),
		MasterID:          int(propNumber(props, gateway.FieldMasterID)),
		Name:              propTitle(props, gateway.FieldName),
		PracticalName:     propText(props, gateway.FieldPracticalName),
		Notes:             propText(props, gateway.FieldNotes),
		StructuredAddress: structuredFromProps(props),
		FormattedAddress:  propText(props, gateway.FieldFormatted),
		GoogleFormatted:   propText(props, gateway.FieldGoogleFormatted),
		PlaceID:           propText(props, gateway.FieldPlaceID),
		Latitude:          propNumber(props, gateway.FieldLatitude),
		Longitude:         propNumber(props, gateway.FieldLongitude),
		MapURL:            propText(props, gateway.FieldMapURL),
		Categories:        propMultiSelect(props, gateway.FieldCategories),
		Status:            parseStatus(propText(props, gateway.FieldStatus)),
		BusinessStatus:    propText(props, gateway.FieldBusinessStatus),
		Archived:          propCheckbox(props, gateway.FieldArchived),
		CreatedTime:       page.CreatedTime,
	}
}

func richText(s string) *notionapi.RichTextProperty {
	return &notionapi.RichTextProperty{
		RichText: []notionapi.RichText{
			{Text: &notionapi.Text{Content: s}},
		},
	}
}

func titleProp(s string) *notionapi.TitleProperty {
	return &notionapi.TitleProperty{
		Title: []notionapi.RichText{
			{Text: &notionapi.Text{Content: s}},
		},
	}
}

// propertiesFromFields converts a canonical field map into typed page
// properties. Unknown field names are rejected upstream by the schema
// check; values here follow the field's declared type.
func propertiesFromFields(fields map[string]interface{}) notionapi.Properties {
	props := notionapi.Properties{}
	for name, val := range fields {
		switch name {
		case gateway.FieldProdLocID, gateway.FieldMasterID:
			props[name] = &notionapi.NumberProperty{Number: toFloat(val)}
		case gateway.FieldLatitude, gateway.FieldLongitude:
			props[name] = &notionapi.NumberProperty{Number: toFloat(val)}
		case gateway.FieldStatus:
			props[name] = &notionapi.SelectProperty{Select: notionapi.Option{Name: toString(val)}}
		case gateway.FieldArchived:
			b, _ := val.(bool)
			props[name] = &notionapi.CheckboxProperty{Checkbox: b}
		case gateway.FieldMaster:
			rel := []notionapi.Relation{}
			if id := toString(val); id != "" {
				rel = append(rel, notionapi.Relation{ID: notionapi.PageID(id)})
			}
			props[name] = &notionapi.RelationProperty{Relation: rel}
		case gateway.FieldMapURL:
			props[name] = &notionapi.URLProperty{URL: toString(val)}
		case gateway.FieldCategories:
			var opts []notionapi.Option
			if vals, ok := val.([]string); ok {
				for _, v := range vals {
					opts = append(opts, notionapi.Option{Name: v})
				}
			}
			props[name] = &notionapi.MultiSelectProperty{MultiSelect: opts}
		case gateway.FieldName:
			props[name] = titleProp(toString(val))
		default:
			// Address components, identifiers and formatted strings are
			// plain text
			props[name] = richText(toString(val))
		}
	}
	return props
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
