// Package app assembles the ingest pipeline from configuration.
package app

import (
	"context"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Lllllllleong/routeingest/internal/config"
	"github.com/Lllllllleong/routeingest/internal/gcp"
	"github.com/Lllllllleong/routeingest/internal/geocode"
	"github.com/Lllllllleong/routeingest/internal/localstore"
	"github.com/Lllllllleong/routeingest/internal/models"
	"github.com/Lllllllleong/routeingest/internal/routes"
	"github.com/Lllllllleong/routeingest/internal/services"
)

// Mode selects where state, locking and continuations live.
type Mode int

const (
	// ModeCloud keeps state in GCS, locks in Firestore and continues through Workflows.
	ModeCloud Mode = iota
	// ModeLocal keeps state in a file and continues on an in-process timer.
	ModeLocal
)

// App is a wired pipeline plus the clients it owns.
type App struct {
	Coordinator *services.Coordinator
	States      services.StateRepository
	// Continuations is set in ModeLocal only.
	Continuations *localstore.TimerScheduler

	closers []io.Closer
}

// Close releases every client the App opened.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// New builds the pipeline for mode from cfg.
func New(ctx context.Context, cfg *config.Config, mode Mode) (*App, error) {
	a := &App{}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	retry := cfg.Retry.Policy()
	h := Heuristics(cfg.Extraction)

	driveSvc, err := gcp.NewDriveService(ctx)
	if err != nil {
		return nil, err
	}
	store := gcp.NewDriveStore(driveSvc)
	docsReader, err := gcp.NewDocsReader(ctx)
	if err != nil {
		return nil, err
	}

	generator, err := a.generator(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var mirror services.ArtifactMirror
	var gcsClient *storage.Client
	if cfg.Destination.MirrorBucket != "" || mode == ModeCloud {
		gcsClient, err = storage.NewClient(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "failed to create storage client")
		}
		a.closers = append(a.closers, gcsClient)
	}
	if cfg.Destination.MirrorBucket != "" {
		mirror = gcp.NewGCSMirror(gcsClient, cfg.Destination.MirrorBucket)
	}

	deps := services.CoordinatorDeps{
		Queue: services.NewQueueBuilder(store, services.QueueBuilderConfig{
			RegEdFolderID:  cfg.Sources.RegEdFolderID,
			SpecEdFolderID: cfg.Sources.SpecEdFolderID,
			RecencyWindow:  time.Duration(cfg.Pipeline.RecencyDays) * 24 * time.Hour,
			Retry:          retry,
		}),
		Extractors: services.Extractors{
			models.RouteTypeRegEdDoc: services.NewStructuredExtractor(docsReader, h, retry),
			models.RouteTypeSpecEdPdf: services.NewGenerativeExtractor(store, gcp.NewDriveOCR(driveSvc, cfg.OCR.Language), generator, services.GenerativeExtractorConfig{
				MaxPages: cfg.OCR.MaxPages,
				Retry:    retry,
			}),
		},
		Normalizer: routes.NewNormalizer(h),
		Geocoder: geocode.NewCache(
			geocode.NewGoogleClient(cfg.Geocode.APIKey,
				geocode.WithRateLimit(cfg.Geocode.RPS),
				geocode.WithRegion(cfg.Geocode.Region)),
			geocode.CacheConfig{
				RegionSuffix:  cfg.Geocode.RegionSuffix,
				CourtesyDelay: cfg.Geocode.CourtesyDelay,
				Retry:         retry,
			}),
		Publisher: services.NewPublisher(store, mirror, services.PublisherConfig{
			DestinationFolderID: cfg.Destination.FolderID,
			Retry:               retry,
		}),
	}

	switch mode {
	case ModeCloud:
		if err := a.cloudControl(ctx, cfg, gcsClient, &deps); err != nil {
			return nil, err
		}
	case ModeLocal:
		a.Continuations = localstore.NewTimerScheduler()
		deps.States = localstore.NewFileStateRepository(cfg.State.LocalPath)
		deps.Locker = localstore.NewMemoryLock()
		deps.Scheduler = a.Continuations
	default:
		return nil, eris.Errorf("unknown mode %d", mode)
	}

	a.States = deps.States
	a.Coordinator = services.NewCoordinator(deps, CoordinatorConfig(cfg))
	ok = true
	zap.L().Debug("pipeline assembled", zap.Int("mode", int(mode)), zap.String("provider", cfg.Generative.Provider))
	return a, nil
}

func (a *App) generator(ctx context.Context, cfg *config.Config) (services.Generator, error) {
	switch cfg.Generative.Provider {
	case "anthropic":
		return gcp.NewAnthropicGenerator(cfg.Anthropic.Key, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens), nil
	case "vertex":
		client, err := gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.Vertex.Region, cfg.Vertex.Model)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client)
		return client, nil
	default:
		return nil, eris.Wrapf(services.ErrConfiguration, "unknown generative provider %q", cfg.Generative.Provider)
	}
}

func (a *App) cloudControl(ctx context.Context, cfg *config.Config, gcsClient *storage.Client, deps *services.CoordinatorDeps) error {
	fs, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, fs)

	scheduler, err := gcp.NewWorkflowScheduler(ctx, cfg.ProjectID, cfg.Workflow.Location, cfg.Workflow.ID, cfg.Workflow.RunURL)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, scheduler)

	deps.States = gcp.NewGCSStateRepository(gcsClient, cfg.State.Bucket, cfg.State.Object)
	deps.Locker = gcp.NewFirestoreLock(fs, cfg.Lock.Collection, cfg.Pipeline.LockName, cfg.Pipeline.LockLease)
	deps.Scheduler = scheduler
	deps.LogSink = gcp.NewFirestoreLogSink(fs, cfg.Log.Collection)
	return nil
}

// Heuristics builds the extraction heuristics, falling back to the stock
// word lists when the configured ones are empty.
func Heuristics(cfg config.ExtractionConfig) *routes.Heuristics {
	def := routes.DefaultHeuristics()
	redMin, otherMax := cfg.RedMin, cfg.OtherMax
	if redMin <= 0 {
		redMin = def.RedMin
	}
	if otherMax <= 0 {
		otherMax = def.OtherMax
	}
	roads, maneuvers := cfg.RoadSuffixes, cfg.ManeuverWords
	if len(roads) == 0 {
		roads = def.RoadSuffixes
	}
	if len(maneuvers) == 0 {
		maneuvers = def.ManeuverWords
	}
	return routes.NewHeuristics(redMin, otherMax, roads, maneuvers)
}

// CoordinatorConfig maps the pipeline settings onto the coordinator.
func CoordinatorConfig(cfg *config.Config) services.CoordinatorConfig {
	return services.CoordinatorConfig{
		BatchSize:         cfg.Pipeline.BatchSize,
		LockWait:          cfg.Pipeline.LockWait,
		ContinuationDelay: cfg.Pipeline.ContinuationDelay,
		Retry:             cfg.Retry.Policy(),
	}
}
