// Package routes holds the text heuristics shared by both extraction
// strategies and the normalizer: clock parsing, period buckets, maneuver and
// address detection, phone and name canonicalisation.
package routes

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var clockDigits = regexp.MustCompile(`^(\d{1,2})[:.](\d{2})`)

// parseLeadingClock parses a clock token at the start of s. It returns the
// minutes past midnight, the number of bytes consumed and whether a clock was found.
func parseLeadingClock(s string) (int, int, bool) {
	m := clockDigits.FindStringSubmatchIndex(s)
	if m == nil {
		return 0, 0, false
	}
	hour, _ := strconv.Atoi(s[m[2]:m[3]])
	minute, _ := strconv.Atoi(s[m[4]:m[5]])
	if minute > 59 {
		return 0, 0, false
	}
	end := m[1]

	meridiem, n := leadingMeridiem(s[end:])
	if n > 0 {
		end += n
	}

	switch meridiem {
	case "AM":
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if hour > 23 {
			return 0, 0, false
		}
		// Buses do not run between 1 and 5 in the morning; unmarked times
		// in that range are afternoon runs written on a 12-hour clock.
		if hour >= 1 && hour <= 5 {
			hour += 12
		}
	}
	return hour*60 + minute, end, true
}

// leadingMeridiem detects an AM/PM marker such as "AM", " a.m.", "pm" at the
// start of s and returns it with the number of bytes it spans.
func leadingMeridiem(s string) (string, int) {
	i := 0
	for i < len(s) && s[i] == ' ' {
		i++
	}
	j := i
	var letters []byte
	for j < len(s) && len(letters) < 2 {
		c := s[j]
		switch {
		case c == '.':
			j++
		case c == ' ' && len(letters) == 1:
			j++
		case unicode.IsLetter(rune(c)):
			letters = append(letters, byte(unicode.ToUpper(rune(c))))
			j++
		default:
			return "", 0
		}
	}
	if len(letters) != 2 || letters[1] != 'M' || (letters[0] != 'A' && letters[0] != 'P') {
		return "", 0
	}
	if j < len(s) && s[j] == '.' {
		j++
	}
	// The marker must end the token: "6:42 AMBER LN" has no meridiem.
	if j < len(s) && unicode.IsLetter(rune(s[j])) {
		return "", 0
	}
	return string(letters), j
}

// ParseClock returns minutes past midnight for free-form clock text such as
// "6:42 AM", "06:42", "3:15pm" or "4.05 p.m.".
func ParseClock(s string) (int, bool) {
	minutes, _, ok := parseLeadingClock(strings.TrimSpace(s))
	return minutes, ok
}

// SplitLeadingTime splits "6:42 AM - 123 Main St" into its clock token and the
// remainder. ok is false when the line does not start with a clock token or
// nothing follows it.
func SplitLeadingTime(line string) (clock, rest string, ok bool) {
	line = strings.TrimSpace(line)
	_, n, found := parseLeadingClock(line)
	if !found {
		return "", line, false
	}
	clock = strings.TrimSpace(line[:n])
	rest = strings.TrimLeft(line[n:], " \t-–—:,|")
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return clock, "", false
	}
	return clock, rest, true
}

// NormalizeTime returns a canonical key for clock text: "h:mm AM" when it parses,
// otherwise the lower-cased text with whitespace collapsed.
func NormalizeTime(s string) string {
	if minutes, ok := ParseClock(s); ok {
		return FormatClock(minutes)
	}
	return strings.ToLower(CollapseSpaces(s))
}

// FormatClock renders minutes past midnight as "h:mm AM".
func FormatClock(minutes int) string {
	h, m := minutes/60, minutes%60
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h %= 12
	if h == 0 {
		h = 12
	}
	return strconv.Itoa(h) + ":" + twoDigits(m) + " " + suffix
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// CollapseSpaces trims s and replaces internal whitespace runs with one space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
