package routes

import (
	"regexp"
	"strings"
)

var phoneSeparators = regexp.MustCompile(`(?i)[,;/|\n]+|\s+(?:or|and|&)\s+`)

// NormalizePhones splits a raw phone field into numbers, canonicalises each
// and drops duplicates while keeping first-seen order. Ten-digit numbers
// (after dropping a leading country code 1) are rendered as XXX-XXX-XXXX;
// anything else is reduced to its digits.
func NormalizePhones(raw string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, tok := range phoneTokens(raw) {
		phone := NormalizePhone(tok)
		if phone == "" {
			continue
		}
		if _, dup := seen[phone]; dup {
			continue
		}
		seen[phone] = struct{}{}
		out = append(out, phone)
	}
	return out
}

// phoneTokens splits on explicit separators, then on whitespace when every
// whitespace-separated group is a full number on its own.
func phoneTokens(raw string) []string {
	var out []string
	for _, tok := range phoneSeparators.Split(raw, -1) {
		fields := strings.Fields(tok)
		if len(fields) < 2 {
			out = append(out, tok)
			continue
		}
		whole := true
		for _, f := range fields {
			if len(digitsOf(f)) < 10 {
				whole = false
				break
			}
		}
		if whole {
			out = append(out, fields...)
		} else {
			out = append(out, tok)
		}
	}
	return out
}

func digitsOf(s string) string {
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	return digits.String()
}

// NormalizePhone canonicalises a single phone number.
func NormalizePhone(raw string) string {
	d := digitsOf(raw)
	if d == "" {
		return ""
	}
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	if len(d) == 10 {
		return d[:3] + "-" + d[3:6] + "-" + d[6:]
	}
	return d
}
