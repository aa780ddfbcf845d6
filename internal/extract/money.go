package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Amounts finds every currency-like substring matched by re and parses it.
// Matches that do not parse are skipped.
func Amounts(text string, re *regexp.Regexp) []float64 {
	if re == nil {
		return nil
	}
	var amounts []float64
	for _, m := range re.FindAllString(text, -1) {
		if v, ok := ParseAmount(m); ok {
			amounts = append(amounts, v)
		}
	}
	return amounts
}

// ParseAmount turns "$1,234.56" or "1234.56" into a float.
// Currency symbols, spaces and thousands separators are dropped.
func ParseAmount(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	clean := strings.Trim(b.String(), ".")
	if clean == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// MinMax returns the smallest and largest value; ok is false for empty input
func MinMax(values []float64) (lo, hi float64, ok bool) {
	if len(values) == 0 {
		return 0, 0, false
	}
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, true
}

// HasDuplicates reports whether any string occurs more than once
func HasDuplicates(values []string) bool {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			return true
		}
		seen[v] = struct{}{}
	}
	return false
}
