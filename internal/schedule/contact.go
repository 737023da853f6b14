package schedule

import (
	"regexp"
	"strings"
)

var (
	namePattern  = regexp.MustCompile(`^[\p{L} ]+$`)
	phonePattern = regexp.MustCompile(`^\d{10,15}$`)
	phoneNoise   = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "", "/", "")
)

// NormalizeName collapses spacing and reports whether the result is letters and spaces only.
func NormalizeName(text string) (string, bool) {
	name := strings.Join(strings.Fields(text), " ")
	if name == "" || !namePattern.MatchString(name) {
		return "", false
	}
	return name, true
}

// NormalizePhone strips common separators and a leading + and requires 10 to 15 digits.
func NormalizePhone(text string) (string, bool) {
	phone := phoneNoise.Replace(strings.TrimSpace(text))
	phone = strings.TrimPrefix(phone, "+")
	if !phonePattern.MatchString(phone) {
		return "", false
	}
	return phone, true
}
