package models

import "strings"

// StoreLocations is the allow-list of physical stores that may redeem coupons.
var StoreLocations = []string{
	"Adyar",
	"Anna Nagar",
	"T. Nagar",
	"Velachery",
	"Mylapore",
	"Nungambakkam",
	"Besant Nagar",
	"Porur",
	"Tambaram",
	"Kilpauk",
}

// CanonicalStoreLocation matches loc case-insensitively against the allow-list
// and returns the stored spelling.
func CanonicalStoreLocation(loc string) (string, bool) {
	loc = strings.TrimSpace(loc)
	for _, l := range StoreLocations {
		if strings.EqualFold(l, loc) {
			return l, true
		}
	}
	return "", false
}
