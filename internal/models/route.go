package models

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// Period buckets a route by time of day.
type Period string

const (
	PeriodAM     Period = "AM"
	PeriodPM     Period = "PM"
	PeriodMidDay Period = "Mid-day"
	PeriodRoute  Period = "Route"
)

// ExtractionMethod tags which strategy produced an artifact.
type ExtractionMethod string

const (
	ExtractionDeterministic ExtractionMethod = "deterministic-red-text"
	ExtractionGenerative    ExtractionMethod = "ocr-generative"
)

// StudentRecord is one rider attached to a stop.
type StudentRecord struct {
	Name           string `json:"name"`
	ContactName    string `json:"contactName"`
	PhoneNumber    string `json:"phoneNumber"`
	OtherEquipment string `json:"otherEquipment"`
}

// StopRecord is one pickup or drop-off location on a route.
type StopRecord struct {
	Time         string          `json:"time"`
	Location     string          `json:"location"`
	Students     []StudentRecord `json:"students"`
	Latitude     *float64        `json:"latitude,omitempty"`
	Longitude    *float64        `json:"longitude,omitempty"`
	GeocodeError string          `json:"geocodeError,omitempty"`
}

// HasCoordinates reports whether both coordinates are set.
func (s StopRecord) HasCoordinates() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// SetCoordinates sets both coordinates and clears any geocode error.
func (s *StopRecord) SetCoordinates(ll LatLng) {
	lat, lng := ll.Lat, ll.Lng
	s.Latitude = &lat
	s.Longitude = &lng
	s.GeocodeError = ""
}

// RouteDraft is extraction output before cleaning and classification.
type RouteDraft struct {
	BusNumber  string       `json:"busNumber"`
	SchoolName string       `json:"schoolName"`
	Period     Period       `json:"period,omitempty"`
	Stops      []StopRecord `json:"stops"`
}

// ArtifactMeta carries provenance for a published route.
type ArtifactMeta struct {
	SourceType        RouteType        `json:"sourceType"`
	SourceID          string           `json:"sourceId"`
	SourceFileName    string           `json:"sourceFileName"`
	SourceFingerprint string           `json:"sourceFingerprint"`
	GeneratedAt       time.Time        `json:"generatedAt"`
	ExtractionMethod  ExtractionMethod `json:"extractionMethod"`
	Bounds            []float64        `json:"bounds,omitempty"`
}

// RouteArtifact is the JSON record read by the map application.
type RouteArtifact struct {
	Meta       ArtifactMeta `json:"meta"`
	BusNumber  string       `json:"busNumber"`
	SchoolName string       `json:"schoolName"`
	Period     Period       `json:"period"`
	Stops      []StopRecord `json:"stops"`
}

// ParseArtifactStops reads the stops out of a published route file. Besides the
// canonical object it accepts a bare array of stops and {"routes":[{"stops":[...]}]}.
func ParseArtifactStops(data []byte) ([]StopRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, eris.New("models: empty artifact")
	}

	if trimmed[0] == '[' {
		var stops []StopRecord
		if err := json.Unmarshal(trimmed, &stops); err != nil {
			return nil, eris.Wrap(err, "models: parse stop array")
		}
		return stops, nil
	}

	var shape struct {
		Stops  []StopRecord `json:"stops"`
		Routes []struct {
			Stops []StopRecord `json:"stops"`
		} `json:"routes"`
	}
	if err := json.Unmarshal(trimmed, &shape); err != nil {
		return nil, eris.Wrap(err, "models: parse artifact")
	}
	if shape.Stops != nil {
		return shape.Stops, nil
	}
	var stops []StopRecord
	for _, r := range shape.Routes {
		stops = append(stops, r.Stops...)
	}
	return stops, nil
}
