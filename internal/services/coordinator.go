package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Lllllllleong/routeingest/internal/geocode"
	"github.com/Lllllllleong/routeingest/internal/metrics"
	"github.com/Lllllllleong/routeingest/internal/models"
	"github.com/Lllllllleong/routeingest/internal/resilience"
	"github.com/Lllllllleong/routeingest/internal/routes"
)

// CoordinatorConfig bounds one run.
type CoordinatorConfig struct {
	BatchSize         int
	LockWait          time.Duration
	ContinuationDelay time.Duration
	Retry             resilience.RetryConfig
}

// Coordinator drives one bounded batch per invocation under the run lock and
// reschedules itself until the queue is drained.
type Coordinator struct {
	locker     Locker
	states     StateRepository
	queue      *QueueBuilder
	extractors Extractors
	normalizer *routes.Normalizer
	geocoder   *geocode.Cache
	publisher  *Publisher
	scheduler  Scheduler
	oplog      LogSink
	config     CoordinatorConfig
	now        func() time.Time
}

// CoordinatorDeps are the collaborators of a Coordinator. Scheduler and
// LogSink may be nil.
type CoordinatorDeps struct {
	Locker     Locker
	States     StateRepository
	Queue      *QueueBuilder
	Extractors Extractors
	Normalizer *routes.Normalizer
	Geocoder   *geocode.Cache
	Publisher  *Publisher
	Scheduler  Scheduler
	LogSink    LogSink
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(deps CoordinatorDeps, config CoordinatorConfig) *Coordinator {
	if config.BatchSize <= 0 {
		config.BatchSize = 6
	}
	normalizer := deps.Normalizer
	if normalizer == nil {
		normalizer = routes.NewNormalizer(nil)
	}
	return &Coordinator{
		locker:     deps.Locker,
		states:     deps.States,
		queue:      deps.Queue,
		extractors: deps.Extractors,
		normalizer: normalizer,
		geocoder:   deps.Geocoder,
		publisher:  deps.Publisher,
		scheduler:  deps.Scheduler,
		oplog:      deps.LogSink,
		config:     config,
		now:        time.Now,
	}
}

// Run executes one bounded batch. Lock contention is not an error: the
// report comes back with Acquired false.
func (c *Coordinator) Run(ctx context.Context, req models.RunRequest) (*models.RunReport, error) {
	report := &models.RunReport{RunID: uuid.NewString()}
	logCtx := zap.L().With(zap.String("runId", report.RunID), zap.String("trigger", req.Source))

	acquired, err := c.locker.Acquire(ctx, c.config.LockWait)
	if err != nil {
		metrics.IncRun(metrics.RunFailed)
		return report, eris.Wrap(err, "acquire run lock")
	}
	if !acquired {
		logCtx.Info("another run holds the lock, exiting")
		metrics.IncRun(metrics.RunContended)
		return report, nil
	}
	report.Acquired = true
	defer func() {
		if err := c.locker.Release(context.WithoutCancel(ctx)); err != nil {
			logCtx.Error("failed to release run lock", zap.Error(err))
		}
	}()

	c.record(ctx, report.RunID, "info", "", "run started by "+req.Source)

	err = c.run(ctx, req, report, logCtx)
	switch {
	case err != nil:
		metrics.IncRun(metrics.RunFailed)
		logCtx.Error("run failed", zap.Error(err))
		c.record(ctx, report.RunID, "error", "", "run failed: "+err.Error())
	case report.Continued:
		metrics.IncRun(metrics.RunContinued)
	default:
		metrics.IncRun(metrics.RunCompleted)
	}
	if err == nil {
		logCtx.Info("run finished",
			zap.Int("attempted", report.Attempted),
			zap.Int("published", report.Published),
			zap.Int("skipped", report.Skipped),
			zap.Int("warnings", report.Warnings),
			zap.Int("failures", report.Failures),
			zap.Int("remaining", report.Remaining),
			zap.Bool("continued", report.Continued),
		)
		c.record(ctx, report.RunID, "info", "", runSummary(report))
	}
	return report, err
}

func (c *Coordinator) run(ctx context.Context, req models.RunRequest, report *models.RunReport, logCtx *zap.Logger) error {
	if err := c.publisher.Preflight(ctx); err != nil {
		return err
	}

	state, err := resilience.DoVal(ctx, c.config.Retry.Named("state", "load"), func(ctx context.Context) (*models.PipelineState, error) {
		return c.states.Load(ctx)
	})
	if err != nil {
		return eris.Wrap(err, "load pipeline state")
	}
	state.Repair()

	if req.RebuildQueue || state.QueueExhausted() {
		items, err := c.queue.Build(ctx)
		if err != nil {
			return eris.Wrap(err, "build work queue")
		}
		state.ResetQueue(items)
		report.QueueBuilt = true
	}
	report.QueueSize = len(state.Queue)

	batch := append([]models.WorkItem(nil), state.NextBatch(c.config.BatchSize)...)
	session := c.geocoder.Session(state)

	var fatal error
	handled := 0
	for _, item := range batch {
		if ctx.Err() != nil {
			break
		}
		report.Attempted++
		if fatal = c.handleItem(ctx, state, session, item, report, logCtx); fatal != nil {
			break
		}
		handled++
	}
	state.Advance(handled)

	if fatal == nil && ctx.Err() == nil {
		c.continueOrComplete(ctx, req, state, report, logCtx)
	}
	report.Remaining = len(state.Queue) - state.Cursor

	state.UpdatedAt = c.now().UTC()
	if err := resilience.Do(context.WithoutCancel(ctx), c.config.Retry.Named("state", "save"), func(ctx context.Context) error {
		return c.states.Save(ctx, state)
	}); err != nil {
		return eris.Wrap(err, "save pipeline state")
	}
	if fatal != nil {
		return fatal
	}
	return ctx.Err()
}

// handleItem runs one item through the pipeline. Only configuration errors
// are returned; everything else is counted and logged.
func (c *Coordinator) handleItem(ctx context.Context, state *models.PipelineState, session *geocode.Session, item models.WorkItem, report *models.RunReport, logCtx *zap.Logger) error {
	itemLog := logCtx.With(
		zap.String("sourceId", item.SourceID),
		zap.String("sourceName", item.SourceName),
		zap.String("routeType", string(item.RouteType)),
	)

	if state.IsProcessed(item) {
		report.Skipped++
		metrics.IncItem(metrics.ItemSkipped)
		itemLog.Debug("fingerprint unchanged, skipping")
		return nil
	}

	published, err := c.processItem(ctx, session, item)
	switch {
	case err == nil:
		state.MarkProcessed(item)
		report.Published++
		for _, a := range published {
			report.Artifacts = append(report.Artifacts, a.BusNumber+"/"+a.Name)
		}
		metrics.IncItem(metrics.ItemPublished)
		itemLog.Info("item published", zap.Int("artifacts", len(published)))
		c.record(ctx, report.RunID, "info", item.SourceID, "published "+item.SourceName)
		return nil
	case errors.Is(err, ErrConfiguration):
		return err
	case errors.Is(err, ErrExtractionQuality):
		report.Warnings++
		metrics.IncItem(metrics.ItemWarning)
		itemLog.Warn("nothing usable extracted", zap.Error(err))
		c.record(ctx, report.RunID, "warning", item.SourceID, err.Error())
		return nil
	default:
		report.Failures++
		metrics.IncItem(metrics.ItemFailed)
		itemLog.Error("item failed", zap.Error(err))
		c.record(ctx, report.RunID, "error", item.SourceID, err.Error())
		return nil
	}
}

func (c *Coordinator) processItem(ctx context.Context, session *geocode.Session, item models.WorkItem) ([]PublishedArtifact, error) {
	extractor, ok := c.extractors.For(item)
	if !ok {
		return nil, eris.Errorf("no extractor for route type %q", item.RouteType)
	}

	drafts, err := extractor.Extract(ctx, item)
	if err != nil {
		return nil, err
	}

	cleaned := c.mergeByArtifact(c.normalizer.NormalizeAll(drafts))
	if len(cleaned) == 0 {
		return nil, eris.Wrapf(ErrExtractionQuality, "no stops left after cleaning %q", item.SourceName)
	}

	for i := range cleaned {
		if err := session.Resolve(ctx, cleaned[i].Stops); err != nil {
			return nil, err
		}
	}

	published := make([]PublishedArtifact, 0, len(cleaned))
	for _, route := range cleaned {
		p, err := c.publisher.Publish(ctx, item, extractor.Method(), route)
		if err != nil {
			return nil, err
		}
		published = append(published, p)
	}
	return published, nil
}

// mergeByArtifact folds routes that would publish to the same artifact into
// one, so a later route cannot silently overwrite an earlier one.
func (c *Coordinator) mergeByArtifact(in []models.RouteDraft) []models.RouteDraft {
	index := make(map[string]int, len(in))
	var out []models.RouteDraft
	for _, r := range in {
		key := r.BusNumber + "/" + routes.ArtifactName(r.SchoolName, r.Period)
		if i, ok := index[key]; ok {
			out[i].Stops = append(out[i].Stops, r.Stops...)
			continue
		}
		index[key] = len(out)
		out = append(out, r)
	}
	for i := range out {
		if merged, ok := c.normalizer.Normalize(out[i]); ok {
			out[i] = merged
		}
	}
	return out
}

// continueOrComplete schedules the next slice when work remains and otherwise
// clears the queue and cancels any continuation still pending.
func (c *Coordinator) continueOrComplete(ctx context.Context, req models.RunRequest, state *models.PipelineState, report *models.RunReport, logCtx *zap.Logger) {
	previous := state.PendingContinuation
	state.PendingContinuation = ""

	if !state.QueueExhausted() && c.scheduler != nil {
		handle, err := resilience.DoVal(ctx, c.config.Retry.Named("scheduler", "schedule"), func(ctx context.Context) (string, error) {
			return c.scheduler.Schedule(ctx, c.config.ContinuationDelay)
		})
		if err != nil {
			logCtx.Error("failed to schedule continuation", zap.Error(err))
			c.record(ctx, report.RunID, "error", "", "continuation not scheduled: "+err.Error())
		} else {
			state.PendingContinuation = handle
			report.Continued = true
			logCtx.Info("continuation scheduled", zap.String("handle", handle), zap.Duration("delay", c.config.ContinuationDelay))
		}
	} else if state.QueueExhausted() {
		state.ResetQueue(nil)
		logCtx.Info("queue drained")
	}

	if previous != "" && previous != req.ExecutionName && previous != state.PendingContinuation && c.scheduler != nil {
		if err := c.scheduler.Cancel(ctx, previous); err != nil {
			logCtx.Warn("failed to cancel pending continuation", zap.String("handle", previous), zap.Error(err))
		}
	}
}

func (c *Coordinator) record(ctx context.Context, runID, level, sourceID, message string) {
	if c.oplog == nil {
		return
	}
	entry := models.LogEntry{
		Timestamp: c.now().UTC(),
		Level:     level,
		RunID:     runID,
		SourceID:  sourceID,
		Message:   message,
	}
	if err := c.oplog.Append(context.WithoutCancel(ctx), entry); err != nil {
		zap.L().Warn("operational log append failed", zap.Error(err))
	}
}

func runSummary(r *models.RunReport) string {
	status := "completed"
	if r.Continued {
		status = "continued"
	}
	return fmt.Sprintf("run %s: attempted=%d published=%d skipped=%d warnings=%d failures=%d remaining=%d",
		status, r.Attempted, r.Published, r.Skipped, r.Warnings, r.Failures, r.Remaining)
}
