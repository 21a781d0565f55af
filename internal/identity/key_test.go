package identity

import (
	"testing"

	"github.com/scoutdesk/scoutdesk/internal/models"
)

var fullAddr = models.StructuredAddress{
	Address1: "123 Main St",
	City:     "Springfield",
	State:    "IL",
	Zip:      "62704",
	Country:  "US",
}

func TestResolvePriority(t *testing.T) {
	// place_id wins over everything
	k := Resolve(fullAddr, "ChIJabc")
	if k.Kind != KindPlaceID || k.Value != "ChIJabc" {
		t.Errorf("Expected place_id key, got %+v", k)
	}

	// Full address without place_id hashes
	k = Resolve(fullAddr, "")
	if k.Kind != KindAddressHash {
		t.Errorf("Expected address hash, got %+v", k)
	}

	// Missing address1 degrades to coarse
	noStreet := fullAddr
	noStreet.Address1 = ""
	k = Resolve(noStreet, "")
	if k.Kind != KindCoarse {
		t.Errorf("Expected coarse key, got %+v", k)
	}

	// Nothing usable
	k = Resolve(models.StructuredAddress{}, "")
	if !k.Zero() {
		t.Errorf("Expected zero key, got %+v", k)
	}
}

func TestResolveAllOrder(t *testing.T) {
	keys := ResolveAll(fullAddr, "ChIJabc")
	if len(keys) != 3 {
		t.Fatalf("Expected 3 tiers, got %d", len(keys))
	}
	if keys[0].Kind != KindPlaceID || keys[1].Kind != KindAddressHash || keys[2].Kind != KindCoarse {
		t.Errorf("Tiers out of order: %v %v %v", keys[0].Kind, keys[1].Kind, keys[2].Kind)
	}
}

func TestAddressHashFoldsFormatting(t *testing.T) {
	noisy := models.StructuredAddress{
		Address1: "  123  MAIN st ",
		City:     "SPRINGFIELD",
		State:    "il",
		Zip:      "62704",
		Country:  "us",
	}
	a := AddressHashKey(fullAddr)
	b := AddressHashKey(noisy)
	if a.Value != b.Value {
		t.Error("Case and whitespace noise should not change the hash")
	}
}

func TestAddressHashRequiresComponents(t *testing.T) {
	partial := fullAddr
	partial.Zip = ""
	if k := AddressHashKey(partial); !k.Zero() {
		t.Errorf("Hash without zip should be unusable, got %+v", k)
	}
}

func TestAddressHashNoZipIgnoresZip(t *testing.T) {
	withZip := fullAddr
	withoutZip := fullAddr
	withoutZip.Zip = ""

	a := AddressHashKeyNoZip(withZip)
	b := AddressHashKeyNoZip(withoutZip)
	if a.Zero() || a.Value != b.Value {
		t.Error("No-zip variant should not depend on the postal code")
	}

	// But must still differ from the full hash
	if a.Value == AddressHashKey(withZip).Value {
		t.Error("No-zip hash collided with the full hash")
	}
}

func TestCoarseKey(t *testing.T) {
	k := CoarseKey(fullAddr)
	if k.Value != "springfield|il|62704" {
		t.Errorf("Unexpected coarse value %q", k.Value)
	}

	noCity := fullAddr
	noCity.City = ""
	if k := CoarseKey(noCity); !k.Zero() {
		t.Errorf("Coarse key without city should be unusable, got %+v", k)
	}
}
