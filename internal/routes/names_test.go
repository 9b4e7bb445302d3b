package routes

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Lllllllleong/routeingest/internal/models"
)

func TestNormalizePhones(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"country code dropped", "1-410-555-0100", []string{"410-555-0100"}},
		{"formatted", "(410) 555 0100", []string{"410-555-0100"}},
		{"duplicates collapse in order", "410-555-0100, 443.555.0199 / 1 (410) 555-0100", []string{"410-555-0100", "443-555-0199"}},
		{"or separator", "4105550100 or 4435550199", []string{"410-555-0100", "443-555-0199"}},
		{"short number reduced to digits", "ext 5501", []string{"5501"}},
		{"short numbers written differently collapse", "555-0100, 555 0100", []string{"5550100"}},
		{"space separated full numbers split", "410-555-0100 410-555-0101", []string{"410-555-0100", "410-555-0101"}},
		{"spaced single number stays whole", "410 555 0100", []string{"410-555-0100"}},
		{"empty", "  ", nil},
		{"no digits", "n/a", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhones(tt.raw))
		})
	}
}

func TestNormalizeBusNumber(t *testing.T) {
	tests := map[string]string{
		"7":      "007",
		"21":     "021",
		"021":    "021",
		"1234":   "1234",
		"Bus 21": "021",
		"#9":     "009",
		"21A":    "21A",
		"  ":     UnassignedBus,
		"":       UnassignedBus,
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeBusNumber(in), "input %q", in)
	}
}

func TestCleanLocation(t *testing.T) {
	assert.Equal(t, "123 Main St", CleanLocation(" - 123   Main St.; "))
	assert.Equal(t, "Oak Ave / Elm St", CleanLocation("*Oak Ave / Elm St*"))
	assert.Equal(t, "", CleanLocation(" ... "))
}

func TestCanonicalSchoolName(t *testing.T) {
	tests := map[string]string{
		"Guilford Park":             "GUILFORD PARK",
		"021 GUILFORD PARK.pdf":     "GUILFORD PARK",
		"Guilford  Park (AM Route)": "GUILFORD PARK",
		"Guilford Park - PM":        "GUILFORD PARK",
		"Guilford Park Route 21 AM": "GUILFORD PARK",
		"Guilford Park Mid-Day":     "GUILFORD PARK",
		"St. Mary's School":         "ST. MARY'S SCHOOL",
		"Amherst Academy":           "AMHERST ACADEMY",
		"(PM)":                      UnknownSchool,
	}
	for in, want := range tests {
		assert.Equal(t, want, CanonicalSchoolName(in), "input %q", in)
	}
}

func TestArtifactName(t *testing.T) {
	assert.Equal(t, "GUILFORD PARK (AM)", ArtifactName("Guilford Park am", models.PeriodAM))
	assert.Equal(t, "GUILFORD PARK (Mid-day)", ArtifactName("guilford park", models.PeriodMidDay))
}

func TestFileNameHints(t *testing.T) {
	assert.Equal(t, "021", BusHintFromFileName("021 GUILFORD PARK.pdf"))
	assert.Equal(t, "", BusHintFromFileName("GUILFORD PARK.pdf"))
	assert.Equal(t, "GUILFORD PARK", SchoolHintFromFileName("021 GUILFORD PARK.pdf"))
	assert.Equal(t, "Guilford Park AM", SchoolHintFromFileName("21 - Guilford Park AM"))
	assert.Equal(t, "St. Mary's", SchoolHintFromFileName("St. Mary's"))
}
