package catalog

import (
	"strings"

	"nuam/internal"
	"nuam/internal/util"
)

// CountryIndex looks countries up by ISO code or by name.
type CountryIndex struct {
	ByCode map[string]internal.Country
	ByName map[string]internal.Country
}

func BuildCountryIndex(countries []internal.Country) *CountryIndex {
	idx := &CountryIndex{
		ByCode: map[string]internal.Country{},
		ByName: map[string]internal.Country{},
	}
	for _, c := range countries {
		if code := strings.ToUpper(strings.TrimSpace(c.Code)); code != "" {
			idx.ByCode[code] = c
		}
		if name := util.Normalize(c.Name); name != "" {
			idx.ByName[name] = c
		}
	}
	return idx
}

// Resolve matches value against codes case-insensitively, then against names
// ignoring case and accents.
func (idx *CountryIndex) Resolve(value string) (internal.Country, bool) {
	if idx == nil {
		return internal.Country{}, false
	}
	if c, ok := idx.ByCode[strings.ToUpper(strings.TrimSpace(value))]; ok {
		return c, true
	}
	c, ok := idx.ByName[util.Normalize(value)]
	return c, ok
}
