// Package locale maps court time zones to the region defaults used when a court omits them.
package locale

import "strings"

type Region struct {
	Code      string // ISO 3166-1 alpha-2, also the phonenumbers default region
	Name      string
	Currency  string // ISO 4217
	TimeZones []string
}

var Regions = map[string]Region{
	"CN": {
		Code:      "CN",
		Name:      "China",
		Currency:  "CNY",
		TimeZones: []string{"Asia/Shanghai", "Asia/Chongqing", "Asia/Harbin", "Asia/Urumqi", "PRC"},
	},
	"HK": {
		Code:      "HK",
		Name:      "Hong Kong",
		Currency:  "HKD",
		TimeZones: []string{"Asia/Hong_Kong", "Hongkong"},
	},
	"MO": {
		Code:      "MO",
		Name:      "Macau",
		Currency:  "MOP",
		TimeZones: []string{"Asia/Macau", "Asia/Macao"},
	},
	"TW": {
		Code:      "TW",
		Name:      "Taiwan",
		Currency:  "TWD",
		TimeZones: []string{"Asia/Taipei", "ROC"},
	},
	"SG": {
		Code:      "SG",
		Name:      "Singapore",
		Currency:  "SGD",
		TimeZones: []string{"Asia/Singapore", "Singapore"},
	},
	"TH": {
		Code:      "TH",
		Name:      "Thailand",
		Currency:  "THB",
		TimeZones: []string{"Asia/Bangkok"},
	},
	"JP": {
		Code:      "JP",
		Name:      "Japan",
		Currency:  "JPY",
		TimeZones: []string{"Asia/Tokyo", "Japan"},
	},
}

// DetectRegion finds the region whose zone list contains tz, case-insensitively.
func DetectRegion(tz string) (Region, bool) {
	tz = strings.TrimSpace(tz)
	for _, region := range Regions {
		for _, z := range region.TimeZones {
			if strings.EqualFold(tz, z) {
				return region, true
			}
		}
	}
	return Region{}, false
}

func CurrencyFor(tz, fallback string) string {
	if region, ok := DetectRegion(tz); ok {
		return region.Currency
	}
	return fallback
}

func PhoneRegionFor(tz, fallback string) string {
	if region, ok := DetectRegion(tz); ok {
		return region.Code
	}
	return fallback
}
