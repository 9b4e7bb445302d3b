package routes

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Lllllllleong/routeingest/internal/models"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		minutes int
		ok      bool
	}{
		{"6:42 AM", 6*60 + 42, true},
		{"6:42am", 6*60 + 42, true},
		{"06:42", 6*60 + 42, true},
		{"4:15 PM", 16*60 + 15, true},
		{"4.05 p.m.", 16*60 + 5, true},
		{"12:10 PM", 12*60 + 10, true},
		{"12:10 AM", 10, true},
		{"3:15", 15*60 + 15, true},
		{"15:15", 15*60 + 15, true},
		{"13:00 PM", 0, false},
		{"6:75", 0, false},
		{"", 0, false},
		{"Main St", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseClock(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.minutes, got)
			}
		})
	}
}

func TestSplitLeadingTime(t *testing.T) {
	tests := []struct {
		line  string
		clock string
		rest  string
		ok    bool
	}{
		{"6:42 AM 123 Main St", "6:42 AM", "123 Main St", true},
		{"6:42 AM - 123 Main St", "6:42 AM", "123 Main St", true},
		{"7:05: Oak Ave / Elm St", "7:05", "Oak Ave / Elm St", true},
		{"6:42 AMBER LN", "6:42", "AMBER LN", true},
		{"2:50pm Church Rd", "2:50pm", "Church Rd", true},
		{"6:42 AM", "6:42 AM", "", false},
		{"123 Main St", "", "123 Main St", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			clock, rest, ok := SplitLeadingTime(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.clock, clock)
			assert.Equal(t, tt.rest, rest)
		})
	}
}

func TestNormalizeTime(t *testing.T) {
	assert.Equal(t, "6:42 AM", NormalizeTime("06:42"))
	assert.Equal(t, "6:42 AM", NormalizeTime("6:42 a.m."))
	assert.Equal(t, "12:00 PM", NormalizeTime("12:00 pm"))
	assert.Equal(t, "after school", NormalizeTime("  After   School "))
}

func TestClassifyMinutes(t *testing.T) {
	tests := []struct {
		minutes int
		want    models.Period
		ok      bool
	}{
		{359, "", false},
		{360, models.PeriodAM, true},
		{570, models.PeriodAM, true},
		{571, models.PeriodMidDay, true},
		{839, models.PeriodMidDay, true},
		{840, models.PeriodPM, true},
		{1080, models.PeriodPM, true},
		{1081, "", false},
	}
	for _, tt := range tests {
		got, ok := ClassifyMinutes(tt.minutes)
		assert.Equal(t, tt.ok, ok, "minutes %d", tt.minutes)
		assert.Equal(t, tt.want, got, "minutes %d", tt.minutes)
	}
}

func TestClassifyRoute(t *testing.T) {
	stops := func(times ...string) []models.StopRecord {
		out := make([]models.StopRecord, 0, len(times))
		for _, tm := range times {
			out = append(out, models.StopRecord{Time: tm, Location: "x"})
		}
		return out
	}

	assert.Equal(t, models.PeriodAM, ClassifyRoute(stops("7:10 AM", "6:42 AM"), "GUILFORD PARK"))
	assert.Equal(t, models.PeriodPM, ClassifyRoute(stops("4:30 PM", "4:15 PM"), "GUILFORD PARK"))
	assert.Equal(t, models.PeriodMidDay, ClassifyRoute(stops("11:30 AM"), "GUILFORD PARK"))
	assert.Equal(t, models.PeriodPM, ClassifyRoute(stops("", "soon"), "GUILFORD PARK PM"))
	assert.Equal(t, models.PeriodMidDay, ClassifyRoute(stops(""), "Guilford Mid-Day Run"))
	assert.Equal(t, models.PeriodAM, ClassifyRoute(nil, "Guilford (a.m.)"))
	assert.Equal(t, models.PeriodRoute, ClassifyRoute(stops("", ""), "GUILFORD PARK"))
	assert.Equal(t, models.PeriodRoute, ClassifyRoute(nil, "AMHERST PMS ACADEMY"))
}

func TestStopPeriod(t *testing.T) {
	assert.Equal(t, models.PeriodAM, StopPeriod("6:42 AM"))
	assert.Equal(t, models.PeriodPM, StopPeriod("3:05"))
	assert.Equal(t, models.PeriodRoute, StopPeriod(""))
	assert.Equal(t, models.PeriodRoute, StopPeriod("5:10 AM"))
}
