package routes

import (
	"regexp"
	"strings"

	"github.com/Lllllllleong/routeingest/internal/models"
)

// Period windows in minutes past midnight.
const (
	amStart = 6 * 60    // 06:00
	amEnd   = 9*60 + 30 // 09:30
	pmStart = 14 * 60   // 14:00
	pmEnd   = 18 * 60   // 18:00
)

// ClassifyMinutes maps a clock time onto a period. ok is false for times
// outside the 06:00-18:00 service day.
func ClassifyMinutes(minutes int) (models.Period, bool) {
	switch {
	case minutes >= amStart && minutes <= amEnd:
		return models.PeriodAM, true
	case minutes > amEnd && minutes < pmStart:
		return models.PeriodMidDay, true
	case minutes >= pmStart && minutes <= pmEnd:
		return models.PeriodPM, true
	default:
		return "", false
	}
}

// StopPeriod returns the bucket for a single stop time; unparsable or
// out-of-day times land in the Route bucket.
func StopPeriod(clock string) models.Period {
	minutes, ok := ParseClock(clock)
	if !ok {
		return models.PeriodRoute
	}
	if p, ok := ClassifyMinutes(minutes); ok {
		return p
	}
	return models.PeriodRoute
}

var (
	midDayKeyword = regexp.MustCompile(`\bMID[\s-]?DAY\b`)
	amKeyword     = regexp.MustCompile(`\bA\.?M\b\.?`)
	pmKeyword     = regexp.MustCompile(`\bP\.?M\b\.?`)
)

// PeriodFromTitle scans a school or document title for a period keyword.
func PeriodFromTitle(title string) (models.Period, bool) {
	upper := strings.ToUpper(title)
	switch {
	case midDayKeyword.MatchString(upper):
		return models.PeriodMidDay, true
	case amKeyword.MatchString(upper):
		return models.PeriodAM, true
	case pmKeyword.MatchString(upper):
		return models.PeriodPM, true
	default:
		return "", false
	}
}

// ClassifyRoute picks the period for a whole route: the earliest parseable
// stop time decides; failing that the title keywords; failing that Route.
func ClassifyRoute(stops []models.StopRecord, title string) models.Period {
	earliest, found := 0, false
	for _, s := range stops {
		minutes, ok := ParseClock(s.Time)
		if !ok {
			continue
		}
		if !found || minutes < earliest {
			earliest, found = minutes, true
		}
	}
	if found {
		if p, ok := ClassifyMinutes(earliest); ok {
			return p
		}
	}
	if p, ok := PeriodFromTitle(title); ok {
		return p
	}
	return models.PeriodRoute
}
