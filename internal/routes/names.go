package routes

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Lllllllleong/routeingest/internal/models"
)

// UnassignedBus is the bus code used when no bus number can be recovered.
const UnassignedBus = "UNASSIGNED"

// UnknownSchool is the canonical name used when no school name survives cleaning.
const UnknownSchool = "UNKNOWN SCHOOL"

var (
	busPrefix    = regexp.MustCompile(`(?i)^(?:bus\b\s*#?|no\.|#)\s*`)
	oneOrTwo     = regexp.MustCompile(`^\d{1,2}$`)
	leadingBus   = regexp.MustCompile(`^\s*(\d{1,4}[A-Za-z]?)\b[\s\-_.]*`)
	parenthetic  = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
	routeTokens  = regexp.MustCompile(`\b(?:ROUTE|RTE|RT|RUN|BUS)\b\s*#?\s*\d*[A-Z]?\b`)
	periodTokens = regexp.MustCompile(`\b(?:A\.?M|P\.?M|MID[\s-]?DAY)\b\.?`)
	fileExt      = regexp.MustCompile(`(?i)\.(?:pdf|docx?|gdoc|txt|json|jpe?g|png|tiff?)$`)
	edgeJunk     = regexp.MustCompile(`^[\s\-–—_.,:;|]+|[\s\-–—_.,:;|]+$`)

	upper = cases.Upper(language.English)
)

// NormalizeBusNumber pads one- and two-digit bus numbers to three characters
// ("7" -> "007", "21" -> "021") and leaves anything else unchanged. An empty
// result becomes UnassignedBus.
func NormalizeBusNumber(raw string) string {
	bus := CollapseSpaces(raw)
	bus = busPrefix.ReplaceAllString(bus, "")
	bus = strings.TrimSpace(bus)
	if oneOrTwo.MatchString(bus) {
		bus = strings.Repeat("0", 3-len(bus)) + bus
	}
	if bus == "" {
		return UnassignedBus
	}
	return bus
}

// CleanLocation trims punctuation and whitespace runs from both ends of a stop
// location and collapses internal whitespace.
func CleanLocation(raw string) string {
	loc := CollapseSpaces(raw)
	loc = strings.Trim(loc, " \t.,;:-–—_*•·|\"'")
	return CollapseSpaces(loc)
}

// CanonicalSchoolName upper-cases a school name and strips route and period
// annotations so that re-extractions of one route converge on one name.
func CanonicalSchoolName(raw string) string {
	name := upper.String(CollapseSpaces(raw))
	name = fileExt.ReplaceAllString(name, "")
	name = parenthetic.ReplaceAllString(name, " ")
	name = leadingBus.ReplaceAllString(name, "")
	name = routeTokens.ReplaceAllString(name, " ")
	name = periodTokens.ReplaceAllString(name, " ")
	name = CollapseSpaces(name)
	name = edgeJunk.ReplaceAllString(name, "")
	if name == "" {
		return UnknownSchool
	}
	return name
}

// ArtifactName is the canonical file stem for a route: "SCHOOL (PERIOD)".
func ArtifactName(school string, period models.Period) string {
	return CanonicalSchoolName(school) + " (" + string(period) + ")"
}

// BusHintFromFileName returns the leading bus number of a file name such as
// "021 GUILFORD PARK.pdf", or "" if it does not start with one.
func BusHintFromFileName(name string) string {
	m := leadingBus.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return m[1]
}

// SchoolHintFromFileName strips the extension and any leading bus number
// from a file name: "021 GUILFORD PARK.pdf" -> "GUILFORD PARK".
func SchoolHintFromFileName(name string) string {
	base := fileExt.ReplaceAllString(strings.TrimSpace(name), "")
	base = leadingBus.ReplaceAllString(base, "")
	return CollapseSpaces(edgeJunk.ReplaceAllString(base, ""))
}
