package gateway

// Canonical field names. Every write payload uses these and only these,
// so schema drift across target tables cannot silently corrupt data.
const (
	FieldProdLocID  = "Prod Loc ID"
	FieldProduction = "Production"

	FieldFullAddress = "Full Address"
	FieldAddress1    = "Address 1"
	FieldAddress2    = "Address 2"
	FieldAddress3    = "Address 3"
	FieldCity        = "City"
	FieldState       = "State"
	FieldZip         = "Zip"
	FieldCountry     = "Country"
	FieldCounty      = "County"
	FieldBorough     = "Borough"

	FieldPlaceID   = "Place ID"
	FieldLatitude  = "Latitude"
	FieldLongitude = "Longitude"
	FieldMapURL    = "Map URL"

	FieldFormatted       = "Formatted Address"
	FieldGoogleFormatted = "Google Formatted Address"

	FieldMaster = "Master Location"
	FieldStatus = "Status"

	FieldMasterID       = "Master ID"
	FieldName           = "Name"
	FieldPracticalName  = "Practical Name"
	FieldNotes          = "Notes"
	FieldCategories     = "Categories"
	FieldBusinessStatus = "Business Status"
	FieldArchived       = "Archived"
)
