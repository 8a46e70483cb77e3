package timetable

import (
	"regexp"
	"strings"
)

// Operator trip identifiers look like "42000906G": a 4-digit route/sequence
// code followed by the train number (3-4 digits, leading zeros allowed) and a
// single service letter. Feed entities sometimes prepend a "<digits>:" scope.
// The patterns reflect observed upstream data; if the feed changes shape the
// unmatched counter is the canonical signal.
var (
	feedPrefixPattern = regexp.MustCompile(`^\d+:`)
	numberTailPattern = regexp.MustCompile(`^(\d{1,4})([A-Za-z])$`)
	prefixedPattern   = regexp.MustCompile(`^\d{4}(\d{3,4})([A-Za-z])$`)
)

// NormalizeTrainNumber reduces any operator-specific trip identifier to the
// canonical train number: the numeric body with leading zeros stripped plus
// one upper-case letter, e.g. "1:1111406H" -> "406H" and "42000906G" ->
// "906G". Returns "" when the identifier's tail does not conform.
// The function is idempotent: a conformant result normalizes to itself.
func NormalizeTrainNumber(raw string) string {
	s := feedPrefixPattern.ReplaceAllString(raw, "")

	// Identifiers carrying a dotted prefix ("JR-East.Yamanote.400G.Weekday")
	// contribute only their number component; scan dot-separated parts.
	if strings.Contains(s, ".") {
		for _, part := range strings.Split(s, ".") {
			if numberTailPattern.MatchString(part) {
				s = part
				break
			}
		}
	}

	m := numberTailPattern.FindStringSubmatch(s)
	if m == nil {
		m = prefixedPattern.FindStringSubmatch(s)
	}
	if m == nil {
		return ""
	}

	digits := strings.TrimLeft(m[1], "0")
	if digits == "" {
		digits = "0"
	}
	return digits + strings.ToUpper(m[2])
}
