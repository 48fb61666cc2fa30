package util

import (
	"strings"
	"unicode"
)

const DefaultCountryCode = "+91"

// NormalizePhone strips whitespace and hyphens. Numbers without a leading '+' are treated as
// national numbers: leading zeros are dropped and countryCode is prepended.
// This is a fixed regional policy, not an E.164 validator.
func NormalizePhone(p, countryCode string) string {
	p = strings.Map(func(r rune) rune {
		if r == '-' || r == '\ufeff' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, p)
	if strings.HasPrefix(p, "+") {
		return p
	}
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	return countryCode + strings.TrimLeft(p, "0")
}
