package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/routeingest/internal/models"
	"github.com/Lllllllleong/routeingest/internal/resilience"
	"github.com/Lllllllleong/routeingest/internal/routes"
)

// folderListConcurrency bounds parallel listing of bus sub-folders.
const folderListConcurrency = 4

// QueueBuilderConfig holds the source collections and the recency window.
type QueueBuilderConfig struct {
	RegEdFolderID  string
	SpecEdFolderID string
	RecencyWindow  time.Duration
	Retry          resilience.RetryConfig
}

// QueueBuilder scans both source collections and emits freshness-ordered work items.
type QueueBuilder struct {
	store  DocumentStore
	config QueueBuilderConfig
	now    func() time.Time
}

// NewQueueBuilder creates a QueueBuilder reading from store.
func NewQueueBuilder(store DocumentStore, config QueueBuilderConfig) *QueueBuilder {
	return &QueueBuilder{store: store, config: config, now: time.Now}
}

// Build lists every recent source document, most recently modified first.
// A missing source collection is a configuration error.
func (b *QueueBuilder) Build(ctx context.Context) ([]models.WorkItem, error) {
	cutoff := b.now().Add(-b.config.RecencyWindow)
	logCtx := zap.L().With(zap.Time("cutoff", cutoff))

	if err := b.requireFolder(ctx, b.config.RegEdFolderID, "regular education"); err != nil {
		return nil, err
	}
	if err := b.requireFolder(ctx, b.config.SpecEdFolderID, "special education"); err != nil {
		return nil, err
	}

	docs, err := b.list(ctx, b.config.RegEdFolderID, models.MimeGoogleDoc)
	if err != nil {
		return nil, eris.Wrap(err, "list formatted route documents")
	}

	var items []models.WorkItem
	for _, doc := range docs {
		if doc.LatestTimestamp().Before(cutoff) {
			continue
		}
		items = append(items, models.WorkItem{
			RouteType:      models.RouteTypeRegEdDoc,
			SourceID:       doc.ID,
			SourceName:     doc.Name,
			MimeType:       doc.MimeType,
			LastModifiedMs: doc.LatestTimestamp().UnixMilli(),
			BusNumberHint:  routes.BusHintFromFileName(doc.Name),
			SchoolNameHint: routes.SchoolHintFromFileName(doc.Name),
		})
	}

	scanned, err := b.scannedItems(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	items = append(items, scanned...)

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].LastModifiedMs > items[j].LastModifiedMs
	})

	logCtx.Info("work queue built",
		zap.Int("formattedDocuments", len(docs)),
		zap.Int("scannedItems", len(scanned)),
		zap.Int("queued", len(items)),
	)
	return items, nil
}

// scannedItems lists every bus sub-folder of the scanned collection in
// parallel. Output order follows folder order so the stable sort in Build is
// deterministic.
func (b *QueueBuilder) scannedItems(ctx context.Context, cutoff time.Time) ([]models.WorkItem, error) {
	busFolders, err := b.listFolders(ctx, b.config.SpecEdFolderID)
	if err != nil {
		return nil, eris.Wrap(err, "list bus folders")
	}

	perFolder := make([][]models.WorkItem, len(busFolders))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(folderListConcurrency)

	for i, folder := range busFolders {
		g.Go(func() error {
			files, err := b.list(gctx, folder.ID, models.MimePDF)
			if err != nil {
				return eris.Wrapf(err, "list bus folder %q", folder.Name)
			}
			var found []models.WorkItem
			for _, f := range files {
				if f.LatestTimestamp().Before(cutoff) {
					continue
				}
				bus := folder.Name
				if bus == "" {
					bus = routes.BusHintFromFileName(f.Name)
				}
				found = append(found, models.WorkItem{
					RouteType:      models.RouteTypeSpecEdPdf,
					SourceID:       f.ID,
					SourceName:     f.Name,
					MimeType:       f.MimeType,
					LastModifiedMs: f.LatestTimestamp().UnixMilli(),
					BusNumberHint:  bus,
					SchoolNameHint: routes.SchoolHintFromFileName(f.Name),
				})
			}
			perFolder[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var items []models.WorkItem
	for _, found := range perFolder {
		items = append(items, found...)
	}
	return items, nil
}

func (b *QueueBuilder) requireFolder(ctx context.Context, folderID, label string) error {
	if folderID == "" {
		return eris.Wrapf(ErrConfiguration, "%s source folder is not configured", label)
	}
	_, err := resilience.DoVal(ctx, b.config.Retry.Named("documents", "getFolder"), func(ctx context.Context) (models.SourceFile, error) {
		return b.store.GetFolder(ctx, folderID)
	})
	if errors.Is(err, models.ErrNotFound) {
		return eris.Wrapf(ErrConfiguration, "%s source folder %s does not exist", label, folderID)
	}
	if err != nil {
		return eris.Wrapf(err, "look up %s source folder", label)
	}
	return nil
}

func (b *QueueBuilder) list(ctx context.Context, parentID string, mimeTypes ...string) ([]models.SourceFile, error) {
	return resilience.DoVal(ctx, b.config.Retry.Named("documents", "listFiles"), func(ctx context.Context) ([]models.SourceFile, error) {
		return b.store.ListFiles(ctx, parentID, mimeTypes...)
	})
}

func (b *QueueBuilder) listFolders(ctx context.Context, parentID string) ([]models.SourceFile, error) {
	return resilience.DoVal(ctx, b.config.Retry.Named("documents", "listFolders"), func(ctx context.Context) ([]models.SourceFile, error) {
		return b.store.ListFolders(ctx, parentID)
	})
}
