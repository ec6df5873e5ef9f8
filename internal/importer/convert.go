package importer

// convert.go provides the normalization helpers the validator applies to raw
// cell values: strict ISO date parsing, phone and digit-field normalization,
// and a basic email grammar check.

import (
	"regexp"
	"strings"
	"time"
)

// isoDateLayout is the only accepted date format. time.Parse rejects
// impossible calendar dates (2024-02-30) for this layout, which is exactly
// the strictness we want for user-supplied data.
const isoDateLayout = "2006-01-02"

// emailRegex accepts the basic local@domain.tld grammar. It is intentionally
// loose on the local part; the downstream endpoint owns the final word.
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// phoneSeparators are characters commonly found in hand-entered phone
// numbers that normalization strips before the digit-count check.
var phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

// parseISODate parses a strict YYYY-MM-DD date.
func parseISODate(s string) (time.Time, bool) {
	t, err := time.Parse(isoDateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// validEmail reports whether s matches the basic email grammar.
func validEmail(s string) bool {
	return emailRegex.MatchString(s)
}

// normalizePhone strips separator characters from a phone number.
// The result is only accepted when it is exactly digits.
func normalizePhone(s string) string {
	return phoneSeparators.Replace(s)
}

// allDigits reports whether s is non-empty and contains only ASCII digits.
func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
