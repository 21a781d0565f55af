package sheets

import (
	"bytes"
	"testing"

	"github.com/scoutdesk/scoutdesk/internal/models"
)

func TestGenerateLocationSheet(t *testing.T) {
	m := &models.MasterLocation{
		MasterID:      42,
		Name:          "Harbor Warehouse",
		PracticalName: "The big red one",
		Notes:         "Load-in through the east gate.",
		StructuredAddress: models.StructuredAddress{
			Address1: "456 Oak Ave",
			City:     "Portland",
			State:    "OR",
			Zip:      "97205",
			Country:  "US",
		},
		Latitude:   45.52,
		Longitude:  -122.68,
		MapURL:     "https://maps.google.com/?cid=123",
		Categories: []string{"warehouse", "industrial"},
	}

	pdf, err := GenerateLocationSheet(m)
	if err != nil {
		t.Fatalf("GenerateLocationSheet failed: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Error("Output is not a PDF")
	}
}

func TestGenerateLocationSheetMinimal(t *testing.T) {
	// No name, no map URL, no coordinates
	m := &models.MasterLocation{
		MasterID:         1,
		FormattedAddress: "12 Elm St, Austin, TX 78701",
	}
	pdf, err := GenerateLocationSheet(m)
	if err != nil {
		t.Fatalf("GenerateLocationSheet failed: %v", err)
	}
	if len(pdf) == 0 {
		t.Error("Empty PDF output")
	}
}

func TestAddressLines(t *testing.T) {
	lines := addressLines(&models.MasterLocation{
		StructuredAddress: models.StructuredAddress{
			Address1: "10 Downing St",
			City:     "London",
			Zip:      "SW1A 2AA",
			Country:  "GB",
		},
	})
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %v", lines)
	}
	if lines[2] != "GB" {
		t.Errorf("Foreign country should be its own line, got %v", lines)
	}
}
