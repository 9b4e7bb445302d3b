package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/Lllllllleong/routeingest/internal/models"
	"github.com/Lllllllleong/routeingest/internal/resilience"
	"github.com/Lllllllleong/routeingest/internal/routes"
)

// PublisherConfig locates the destination collection.
type PublisherConfig struct {
	DestinationFolderID string
	Retry               resilience.RetryConfig
}

// PublishedArtifact identifies one written artifact.
type PublishedArtifact struct {
	BusNumber string `json:"busNumber"`
	Name      string `json:"name"`
	FileID    string `json:"fileId"`
	Link      string `json:"link,omitempty"`
}

// Publisher writes route artifacts under per-bus sub-collections, replacing
// any earlier artifact of the same canonical name.
type Publisher struct {
	store  DocumentStore
	mirror ArtifactMirror
	config PublisherConfig
	now    func() time.Time
}

// NewPublisher creates a Publisher. mirror may be nil.
func NewPublisher(store DocumentStore, mirror ArtifactMirror, config PublisherConfig) *Publisher {
	return &Publisher{store: store, mirror: mirror, config: config, now: time.Now}
}

// Preflight checks that the destination collection exists. A missing or
// unset destination is a configuration error.
func (p *Publisher) Preflight(ctx context.Context) error {
	if p.config.DestinationFolderID == "" {
		return eris.Wrap(ErrConfiguration, "destination folder is not configured")
	}
	_, err := resilience.DoVal(ctx, p.config.Retry.Named("documents", "getFolder"), func(ctx context.Context) (models.SourceFile, error) {
		return p.store.GetFolder(ctx, p.config.DestinationFolderID)
	})
	if errors.Is(err, models.ErrNotFound) {
		return eris.Wrapf(ErrConfiguration, "destination folder %s does not exist", p.config.DestinationFolderID)
	}
	if err != nil {
		return eris.Wrap(err, "look up destination folder")
	}
	return nil
}

// Publish writes route as "{bus}/{SCHOOL} ({PERIOD}).json".
func (p *Publisher) Publish(ctx context.Context, item models.WorkItem, method models.ExtractionMethod, route models.RouteDraft) (PublishedArtifact, error) {
	if p.config.DestinationFolderID == "" {
		return PublishedArtifact{}, eris.Wrap(ErrConfiguration, "destination folder is not configured")
	}

	artifact := BuildArtifact(item, method, route, p.now())
	content, err := MarshalArtifact(artifact)
	if err != nil {
		return PublishedArtifact{}, err
	}
	name := routes.ArtifactName(route.SchoolName, route.Period)
	fileName := name + ".json"

	busFolder, err := resilience.DoVal(ctx, p.config.Retry.Named("documents", "ensureFolder"), func(ctx context.Context) (models.SourceFile, error) {
		return p.store.EnsureFolder(ctx, p.config.DestinationFolderID, artifact.BusNumber)
	})
	if errors.Is(err, models.ErrNotFound) {
		return PublishedArtifact{}, eris.Wrapf(ErrConfiguration, "destination folder %s disappeared", p.config.DestinationFolderID)
	}
	if err != nil {
		return PublishedArtifact{}, eris.Wrapf(err, "ensure bus folder %s", artifact.BusNumber)
	}

	written, err := resilience.DoVal(ctx, p.config.Retry.Named("documents", "writeFile"), func(ctx context.Context) (models.SourceFile, error) {
		return p.store.WriteFile(ctx, busFolder.ID, fileName, models.MimeJSON, content)
	})
	if err != nil {
		return PublishedArtifact{}, eris.Wrapf(err, "write artifact %s/%s", artifact.BusNumber, fileName)
	}

	if p.mirror != nil {
		if err := p.mirror.Mirror(ctx, artifact.BusNumber+"/"+fileName, content); err != nil {
			zap.L().Warn("artifact mirror failed",
				zap.String("bus", artifact.BusNumber), zap.String("name", fileName), zap.Error(err))
		}
	}

	return PublishedArtifact{
		BusNumber: artifact.BusNumber,
		Name:      name,
		FileID:    written.ID,
		Link:      written.WebViewLink,
	}, nil
}

// BuildArtifact assembles the published record for a cleaned route.
func BuildArtifact(item models.WorkItem, method models.ExtractionMethod, route models.RouteDraft, generatedAt time.Time) models.RouteArtifact {
	stops := make([]models.StopRecord, len(route.Stops))
	for i, s := range route.Stops {
		if s.Students == nil {
			s.Students = []models.StudentRecord{}
		}
		stops[i] = s
	}
	bus := route.BusNumber
	if bus == "" {
		bus = routes.UnassignedBus
	}
	return models.RouteArtifact{
		Meta: models.ArtifactMeta{
			SourceType:        item.RouteType,
			SourceID:          item.SourceID,
			SourceFileName:    item.SourceName,
			SourceFingerprint: item.Fingerprint(),
			GeneratedAt:       generatedAt.UTC(),
			ExtractionMethod:  method,
			Bounds:            StopBounds(stops),
		},
		BusNumber:  bus,
		SchoolName: routes.CanonicalSchoolName(route.SchoolName),
		Period:     route.Period,
		Stops:      stops,
	}
}

// MarshalArtifact renders an artifact as indented JSON.
func MarshalArtifact(a models.RouteArtifact) ([]byte, error) {
	content, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "marshal artifact")
	}
	return append(content, '\n'), nil
}

// StopBounds returns [minLng, minLat, maxLng, maxLat] over the geocoded
// stops, or nil if none are geocoded.
func StopBounds(stops []models.StopRecord) []float64 {
	var flat []float64
	for _, s := range stops {
		if s.HasCoordinates() {
			flat = append(flat, *s.Longitude, *s.Latitude)
		}
	}
	if len(flat) == 0 {
		return nil
	}
	b := geom.NewMultiPointFlat(geom.XY, flat).Bounds()
	return []float64{b.Min(0), b.Min(1), b.Max(0), b.Max(1)}
}
