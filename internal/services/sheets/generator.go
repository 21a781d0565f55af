// Package sheets renders printable one-page PDFs for master locations,
// for crews that want a paper handout with a scannable map link.
package sheets

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"

	"github.com/scoutdesk/scoutdesk/internal/models"
)

// GenerateLocationSheet creates a single-page A4 PDF for one master
// location. When the master carries a map URL a QR code linking to it is
// embedded in the top right corner.
func GenerateLocationSheet(m *models.MasterLocation) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pageWidth, _ := pdf.GetPageSize()
	contentWidth := pageWidth - 30

	// Title block
	pdf.SetFont("Arial", "B", 20)
	title := m.Name
	if title == "" {
		title = m.FormattedAddress
	}
	pdf.MultiCell(contentWidth-45, 9, title, "", "L", false)

	if m.PracticalName != "" && m.PracticalName != m.Name {
		pdf.SetFont("Arial", "I", 12)
		pdf.CellFormat(contentWidth-45, 7, m.PracticalName, "", 1, "L", false, 0, "")
	}

	// QR code to the map, top right
	if m.MapURL != "" {
		qrPng, err := qrcode.Encode(m.MapURL, qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("failed to encode map QR: %w", err)
		}
		opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
		pdf.RegisterImageOptionsReader("map_qr", opts, bytes.NewReader(qrPng))
		pdf.ImageOptions("map_qr", pageWidth-55, 15, 40, 40, false, opts, 0, "")
	}

	pdf.Ln(8)
	pdf.SetDrawColor(180, 180, 180)
	pdf.Line(15, pdf.GetY(), pageWidth-15, pdf.GetY())
	pdf.Ln(6)

	// Address block
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(contentWidth, 6, "Address", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	for _, line := range addressLines(m) {
		pdf.CellFormat(contentWidth, 6, line, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	// Detail rows
	writeRow := func(label, value string) {
		if value == "" {
			return
		}
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(42, 6, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(contentWidth-42, 6, value, "", "L", false)
	}

	writeRow("County", m.County)
	writeRow("Borough", m.Borough)
	if m.HasCoordinates() {
		writeRow("Coordinates", fmt.Sprintf("%.6f, %.6f", m.Latitude, m.Longitude))
	}
	writeRow("Categories", strings.Join(m.Categories, ", "))
	writeRow("Business status", m.BusinessStatus)
	writeRow("Master ID", fmt.Sprintf("%d", m.MasterID))

	if m.Notes != "" {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(contentWidth, 6, "Notes", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(contentWidth, 5, m.Notes, "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addressLines(m *models.MasterLocation) []string {
	var lines []string
	for _, l := range []string{m.Address1, m.Address2, m.Address3} {
		if l != "" {
			lines = append(lines, l)
		}
	}
	stateZip := strings.TrimSpace(m.State + " " + m.Zip)
	var cityParts []string
	if m.City != "" {
		cityParts = append(cityParts, m.City)
	}
	if stateZip != "" {
		cityParts = append(cityParts, stateZip)
	}
	if len(cityParts) > 0 {
		lines = append(lines, strings.Join(cityParts, ", "))
	}
	if m.Country != "" && m.Country != "US" {
		lines = append(lines, m.Country)
	}
	if len(lines) == 0 && m.FormattedAddress != "" {
		lines = append(lines, m.FormattedAddress)
	}
	return lines
}
