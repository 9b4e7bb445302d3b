package routes

import (
	"regexp"
	"strings"
	"unicode"
)

// Heuristics holds the tunable constants used to recognise stops in noisy text.
type Heuristics struct {
	// RedMin is the minimum red channel (0..1) for text to count as marked.
	RedMin float64
	// OtherMax is the maximum green and blue channel for marked text.
	OtherMax      float64
	RoadSuffixes  []string
	ManeuverWords []string

	roads     map[string]struct{}
	maneuvers map[string]struct{}
}

// NewHeuristics builds a Heuristics with lookup sets for the given word lists.
func NewHeuristics(redMin, otherMax float64, roadSuffixes, maneuverWords []string) *Heuristics {
	h := &Heuristics{
		RedMin:        redMin,
		OtherMax:      otherMax,
		RoadSuffixes:  roadSuffixes,
		ManeuverWords: maneuverWords,
		roads:         make(map[string]struct{}, len(roadSuffixes)),
		maneuvers:     make(map[string]struct{}, len(maneuverWords)),
	}
	for _, w := range roadSuffixes {
		h.roads[strings.ToUpper(strings.TrimSpace(w))] = struct{}{}
	}
	for _, w := range maneuverWords {
		h.maneuvers[strings.ToUpper(strings.TrimSpace(w))] = struct{}{}
	}
	return h
}

// DefaultHeuristics returns the stock thresholds and word lists.
func DefaultHeuristics() *Heuristics {
	return NewHeuristics(0.7, 0.25, DefaultRoadSuffixes, DefaultManeuverWords)
}

// DefaultRoadSuffixes make an untimed line look like an address.
var DefaultRoadSuffixes = []string{
	"RD", "ROAD", "ST", "STREET", "AVE", "AVENUE", "DR", "DRIVE", "LN", "LANE", "CT", "COURT",
	"BLVD", "WAY", "PL", "PLACE", "CIR", "CIRCLE", "TER", "TERRACE", "PIKE", "HWY", "PKWY", "TRL",
}

// DefaultManeuverWords are leading tokens of driving directions.
var DefaultManeuverWords = []string{
	"LEFT", "RIGHT", "TURN", "PROCEED", "CONTINUE", "ARRIVE", "DEPART", "STRAIGHT", "MERGE", "BEAR", "U-TURN",
}

// IsMarkedColor reports whether an RGB foreground colour (channels 0..1) is
// in the red range route sheets use to mark stops.
func (h *Heuristics) IsMarkedColor(red, green, blue float64) bool {
	return red >= h.RedMin && green <= h.OtherMax && blue <= h.OtherMax
}

var ordinalPrefix = regexp.MustCompile(`^\d+(ST|ND|RD|TH)\b`)

// IsManeuver reports whether a line is a driving instruction rather than a stop.
func (h *Heuristics) IsManeuver(line string) bool {
	upper := strings.ToUpper(strings.TrimSpace(line))
	if upper == "" {
		return false
	}
	if ordinalPrefix.MatchString(upper) {
		return true
	}
	first := strings.FieldsFunc(upper, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ':' || r == ';' || r == '.'
	})
	if len(first) == 0 {
		return false
	}
	_, ok := h.maneuvers[first[0]]
	return ok
}

// LooksLikeAddress reports whether an untimed line is plausibly a stop
// location: it has a digit, an intersection slash or a road suffix word.
func (h *Heuristics) LooksLikeAddress(line string) bool {
	if strings.ContainsAny(line, "0123456789/") {
		return true
	}
	for _, tok := range strings.FieldsFunc(strings.ToUpper(line), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		if _, ok := h.roads[tok]; ok {
			return true
		}
	}
	return false
}
