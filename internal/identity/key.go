// Package identity derives stable comparison keys for location records.
// Keys are never persisted; they exist only for matching and clustering.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/scoutdesk/scoutdesk/internal/models"
)

// Kind is the identity tier a key was derived at
type Kind string

const (
	// KindPlaceID is authoritative: the identifier is externally verified
	KindPlaceID Kind = "place_id"
	// KindAddressHash is the next-most-precise deterministic signal
	KindAddressHash Kind = "address_hash"
	// KindCoarse is last-resort and must never by itself cause an
	// automatic match without a uniqueness check
	KindCoarse Kind = "coarse"
	// KindNone means the record has no usable key
	KindNone Kind = "none"
)

// Key is a derived comparison value at one tier
type Key struct {
	Kind  Kind
	Value string
}

// Zero reports whether the key is unusable
func (k Key) Zero() bool {
	return k.Kind == KindNone || k.Value == ""
}

// Resolve returns the highest-priority key available for the given address
// and external identifier: place_id > address-hash > coarse city/state/zip.
func Resolve(addr models.StructuredAddress, placeID string) Key {
	for _, k := range ResolveAll(addr, placeID) {
		return k
	}
	return Key{Kind: KindNone}
}

// ResolveAll returns every key available for the record, in priority order.
// The matcher walks these as fall-through tiers.
func ResolveAll(addr models.StructuredAddress, placeID string) []Key {
	var keys []Key

	if id := strings.TrimSpace(placeID); id != "" {
		keys = append(keys, Key{Kind: KindPlaceID, Value: id})
	}

	if k := AddressHashKey(addr); !k.Zero() {
		keys = append(keys, k)
	}

	if k := CoarseKey(addr); !k.Zero() {
		keys = append(keys, k)
	}

	return keys
}

// AddressHashKey hashes the normalized (address1, city, state, zip, country)
// tuple. All four of address1, city, state and zip must be present.
func AddressHashKey(addr models.StructuredAddress) Key {
	a1 := fold(addr.Address1)
	city := fold(addr.City)
	state := fold(addr.State)
	zip := fold(addr.Zip)
	if a1 == "" || city == "" || state == "" || zip == "" {
		return Key{Kind: KindNone}
	}
	joined := strings.Join([]string{a1, city, state, zip, fold(addr.Country)}, "|")
	sum := sha256.Sum256([]byte(joined))
	return Key{Kind: KindAddressHash, Value: hex.EncodeToString(sum[:])}
}

// AddressHashKeyNoZip is the clustering variant that ignores the postal code,
// catching duplicates that differ only by a missing or mistyped zip.
func AddressHashKeyNoZip(addr models.StructuredAddress) Key {
	a1 := fold(addr.Address1)
	city := fold(addr.City)
	state := fold(addr.State)
	if a1 == "" || city == "" || state == "" {
		return Key{Kind: KindNone}
	}
	joined := strings.Join([]string{a1, city, state, fold(addr.Country)}, "|")
	sum := sha256.Sum256([]byte(joined))
	return Key{Kind: KindAddressHash, Value: hex.EncodeToString(sum[:])}
}

// CoarseKey builds the (city, state, zip) tuple. City and state are the
// minimum; zip sharpens the tuple when present.
func CoarseKey(addr models.StructuredAddress) Key {
	city := fold(addr.City)
	state := fold(addr.State)
	if city == "" || state == "" {
		return Key{Kind: KindNone}
	}
	return Key{Kind: KindCoarse, Value: city + "|" + state + "|" + fold(addr.Zip)}
}

// fold lowercases and collapses internal whitespace so formatting noise
// never splits identical addresses across keys
func fold(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
