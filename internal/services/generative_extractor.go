package services

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Lllllllleong/routeingest/internal/models"
	"github.com/Lllllllleong/routeingest/internal/resilience"
)

// RouteExtractionPrompt instructs the generative service. The OCR text is
// appended after it.
const RouteExtractionPrompt = `You extract school bus routes from OCR text of a scanned route sheet.
Return ONLY a JSON array. Each element is one route:
{"busNumber": string, "schoolName": string, "stops": [{"time": string, "location": string,
"students": [{"name": string, "contactName": string, "phoneNumber": string, "otherEquipment": string}]}]}
Rules:
- "time" is the clock time printed for the stop, exactly as written, or "" if none.
- "location" is the street address or intersection of the stop.
- Do NOT include the school itself as a stop.
- Do NOT include driving directions (lines such as "TURN LEFT", "PROCEED", "CONTINUE", "ARRIVE", "DEPART", "1ST RIGHT").
- If a value is missing use "".
- If the text is not a bus route sheet or is unreadable, return [].
OCR text follows.
---
`

// GeneratedStudent is a student as returned by the generative service.
type GeneratedStudent struct {
	Name           string `json:"name" validate:"max=200"`
	ContactName    string `json:"contactName" validate:"max=200"`
	PhoneNumber    string `json:"phoneNumber" validate:"max=200"`
	OtherEquipment string `json:"otherEquipment" validate:"max=500"`
}

// GeneratedStop is a stop as returned by the generative service.
type GeneratedStop struct {
	Time     string             `json:"time" validate:"max=40"`
	Location string             `json:"location" validate:"max=300"`
	Students []GeneratedStudent `json:"students" validate:"dive"`
}

// GeneratedRoute is one element of the generative response array.
type GeneratedRoute struct {
	BusNumber  string          `json:"busNumber" validate:"max=40"`
	SchoolName string          `json:"schoolName" validate:"max=200"`
	Stops      []GeneratedStop `json:"stops" validate:"max=500,dive"`
}

type generatedRoutes struct {
	Routes []GeneratedRoute `validate:"max=50,dive"`
}

// GenerativeExtractorConfig tunes the OCR and generative path.
type GenerativeExtractorConfig struct {
	MaxPages int
	Retry    resilience.RetryConfig
}

// GenerativeExtractor converts scanned route sheets to text and asks a
// generative service for structured routes.
type GenerativeExtractor struct {
	store     DocumentStore
	ocr       OCR
	generator Generator
	validate  *validator.Validate
	pageCount pageCounter
	config    GenerativeExtractorConfig
}

// NewGenerativeExtractor creates a GenerativeExtractor.
func NewGenerativeExtractor(store DocumentStore, ocr OCR, generator Generator, config GenerativeExtractorConfig) *GenerativeExtractor {
	return &GenerativeExtractor{
		store:     store,
		ocr:       ocr,
		generator: generator,
		validate:  validator.New(),
		pageCount: pdfPageCount,
		config:    config,
	}
}

// Method implements Extractor.
func (x *GenerativeExtractor) Method() models.ExtractionMethod {
	return models.ExtractionGenerative
}

// Extract implements Extractor.
func (x *GenerativeExtractor) Extract(ctx context.Context, item models.WorkItem) ([]models.RouteDraft, error) {
	logCtx := zap.L().With(zap.String("sourceId", item.SourceID), zap.String("sourceName", item.SourceName))

	if item.MimeType == "" || item.MimeType == models.MimePDF {
		content, err := resilience.DoVal(ctx, x.config.Retry.Named("documents", "readFile"), func(ctx context.Context) ([]byte, error) {
			return x.store.ReadFile(ctx, item.SourceID)
		})
		if err != nil {
			return nil, eris.Wrapf(err, "download scanned document %s", item.SourceID)
		}
		pages, err := checkScannedPDF(content, x.config.MaxPages, x.pageCount)
		if err != nil {
			return nil, err
		}
		logCtx.Debug("scanned document accepted", zap.Int("pages", pages))
	}

	file := models.SourceFile{ID: item.SourceID, Name: item.SourceName, MimeType: item.MimeType}
	text, err := resilience.DoVal(ctx, x.config.Retry.Named("ocr", "convert"), func(ctx context.Context) (string, error) {
		return x.ocr.ConvertToText(ctx, file)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "ocr %s", item.SourceID)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, eris.Wrapf(ErrExtractionQuality, "ocr produced no text for %q", item.SourceName)
	}

	raw, err := resilience.DoVal(ctx, x.config.Retry.Named("generative", "extractRoutes"), func(ctx context.Context) (string, error) {
		return x.generator.Generate(ctx, RouteExtractionPrompt+text)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "generative extraction for %s", item.SourceID)
	}

	generated, err := x.ParseResponse(raw)
	if err != nil {
		logCtx.Warn("discarding generative response", zap.Error(err), zap.Int("responseBytes", len(raw)))
		return nil, eris.Wrapf(ErrExtractionQuality, "generative response for %q: %v", item.SourceName, err)
	}
	if len(generated) == 0 {
		return nil, eris.Wrapf(ErrExtractionQuality, "generative service found no routes in %q", item.SourceName)
	}

	drafts := make([]models.RouteDraft, 0, len(generated))
	for _, g := range generated {
		drafts = append(drafts, toDraft(g, item))
	}
	return drafts, nil
}

// ParseResponse decodes and validates a generative response. Code fences are
// tolerated, and so is a single route object instead of an array.
func (x *GenerativeExtractor) ParseResponse(raw string) ([]GeneratedRoute, error) {
	body := strings.TrimSpace(raw)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, eris.New("empty response")
	}

	var parsed generatedRoutes
	if strings.HasPrefix(body, "{") {
		var single GeneratedRoute
		if err := json.Unmarshal([]byte(body), &single); err != nil {
			return nil, eris.Wrap(err, "malformed JSON object")
		}
		parsed.Routes = []GeneratedRoute{single}
	} else if err := json.Unmarshal([]byte(body), &parsed.Routes); err != nil {
		return nil, eris.Wrap(err, "malformed JSON array")
	}

	if err := x.validate.Struct(parsed); err != nil {
		return nil, eris.Wrap(err, "schema mismatch")
	}
	return parsed.Routes, nil
}

// toDraft prefers the folder and file name hints over what the model read
// from the page.
func toDraft(g GeneratedRoute, item models.WorkItem) models.RouteDraft {
	d := models.RouteDraft{
		BusNumber:  item.BusNumberHint,
		SchoolName: item.SchoolNameHint,
	}
	if d.BusNumber == "" {
		d.BusNumber = g.BusNumber
	}
	if d.SchoolName == "" {
		d.SchoolName = g.SchoolName
	}
	for _, s := range g.Stops {
		stop := models.StopRecord{Time: s.Time, Location: s.Location}
		for _, st := range s.Students {
			stop.Students = append(stop.Students, models.StudentRecord(st))
		}
		d.Stops = append(d.Stops, stop)
	}
	return d
}
