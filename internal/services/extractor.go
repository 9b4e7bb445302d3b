package services

import (
	"context"

	"github.com/Lllllllleong/routeingest/internal/models"
)

// Extractor turns one source document into raw route drafts.
//
// Implementations return an error wrapping ErrExtractionQuality when the
// document yields nothing usable, and any other error for failures worth a
// later retry.
type Extractor interface {
	Extract(ctx context.Context, item models.WorkItem) ([]models.RouteDraft, error)
	Method() models.ExtractionMethod
}

// Extractors selects the strategy matching a work item's route type.
type Extractors map[models.RouteType]Extractor

// For returns the extractor for item, or false if none is registered.
func (e Extractors) For(item models.WorkItem) (Extractor, bool) {
	x, ok := e[item.RouteType]
	return x, ok
}
