package util

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSyntheticTicker = 10

// StripDiacritics decomposes to NFKD and drops everything outside ASCII, so
// "Río" becomes "Rio" and symbols without an ASCII decomposition disappear.
func StripDiacritics(input string) string {
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	out, _, err := transform.String(fold, input)
	if err != nil {
		return input
	}
	return out
}

// Normalize is the comparison form used for header cells and lookups:
// diacritics stripped, whitespace collapsed, lower-cased.
func Normalize(input string) string {
	s := StripDiacritics(input)
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// SynthesizeTicker derives a ticker from an issuer name for rows that carry
// no ticker. Deterministic but lossy: distinct names may collide.
func SynthesizeTicker(name string) string {
	s := strings.ToUpper(StripDiacritics(name))
	out := strings.Builder{}
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out.WriteRune(r)
			if out.Len() == maxSyntheticTicker {
				break
			}
		}
	}
	return out.String()
}

func ContainsAny(s string, needles ...string) bool {
	for _, p := range needles {
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func StringPtr(v string) *string {
	return &v
}

// OptionalString trims v and returns nil when nothing is left.
func OptionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func Deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
