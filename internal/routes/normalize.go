package routes

import (
	"strings"

	"github.com/Lllllllleong/routeingest/internal/models"
)

// Normalizer cleans extraction output into publishable routes.
type Normalizer struct {
	h *Heuristics
}

// NewNormalizer returns a Normalizer using h to recognise maneuver lines.
func NewNormalizer(h *Heuristics) *Normalizer {
	if h == nil {
		h = DefaultHeuristics()
	}
	return &Normalizer{h: h}
}

// NormalizeAll cleans every draft and drops those left without stops.
func (n *Normalizer) NormalizeAll(drafts []models.RouteDraft) []models.RouteDraft {
	out := make([]models.RouteDraft, 0, len(drafts))
	for _, d := range drafts {
		if cleaned, ok := n.Normalize(d); ok {
			out = append(out, cleaned)
		}
	}
	return out
}

// Normalize cleans one draft. ok is false when no stop survives cleaning, in
// which case the route must not be published.
func (n *Normalizer) Normalize(d models.RouteDraft) (models.RouteDraft, bool) {
	school := CollapseSpaces(d.SchoolName)
	canonicalSchool := CanonicalSchoolName(school)

	out := models.RouteDraft{
		BusNumber:  NormalizeBusNumber(d.BusNumber),
		SchoolName: school,
	}

	seen := make(map[string]struct{}, len(d.Stops))
	for _, s := range d.Stops {
		loc := CleanLocation(s.Location)
		if loc == "" || strings.EqualFold(loc, school) || strings.EqualFold(loc, canonicalSchool) {
			continue
		}
		if n.h.IsManeuver(loc) {
			continue
		}
		clock := CollapseSpaces(s.Time)

		key := StopKey(clock, loc)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		stop := s
		stop.Time = clock
		stop.Location = loc
		stop.Students = normalizeStudents(s.Students)
		out.Stops = append(out.Stops, stop)
	}

	if len(out.Stops) == 0 {
		return out, false
	}

	switch d.Period {
	case models.PeriodAM, models.PeriodPM, models.PeriodMidDay:
		out.Period = d.Period
	default:
		out.Period = ClassifyRoute(out.Stops, school)
	}
	return out, true
}

// StopKey is the case-insensitive uniqueness key of a stop within a route.
func StopKey(clock, location string) string {
	return NormalizeTime(clock) + "|" + strings.ToLower(CollapseSpaces(location))
}

func normalizeStudents(in []models.StudentRecord) []models.StudentRecord {
	out := make([]models.StudentRecord, 0, len(in))
	for _, st := range in {
		rec := models.StudentRecord{
			Name:           CollapseSpaces(st.Name),
			ContactName:    CollapseSpaces(st.ContactName),
			PhoneNumber:    strings.Join(NormalizePhones(st.PhoneNumber), ", "),
			OtherEquipment: CollapseSpaces(st.OtherEquipment),
		}
		if rec == (models.StudentRecord{}) {
			continue
		}
		out = append(out, rec)
	}
	return out
}
