package extract

import "regexp"

// All returns every match of re, or nil
func All(text string, re *regexp.Regexp) []string {
	if re == nil {
		return nil
	}
	return re.FindAllString(text, -1)
}

// FirstCapture returns the first capture group of the first pattern that
// matches. Patterns are tried in order.
func FirstCapture(text string, patterns ...*regexp.Regexp) (string, bool) {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			return m[1], true
		}
	}
	return "", false
}

// AnyMatch reports whether any pattern matches
func AnyMatch(text string, patterns ...*regexp.Regexp) bool {
	for _, re := range patterns {
		if re != nil && re.MatchString(text) {
			return true
		}
	}
	return false
}
