package services

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Lllllllleong/routeingest/internal/models"
	"github.com/Lllllllleong/routeingest/internal/resilience"
	"github.com/Lllllllleong/routeingest/internal/routes"
)

// periodOrder fixes the order drafts are emitted in.
var periodOrder = []models.Period{models.PeriodAM, models.PeriodMidDay, models.PeriodPM, models.PeriodRoute}

// StructuredExtractor reads stops from red-marked lines of formatted route
// sheets. It makes no generative or OCR calls.
type StructuredExtractor struct {
	reader     StyledDocumentReader
	heuristics *routes.Heuristics
	retry      resilience.RetryConfig
}

// NewStructuredExtractor creates a StructuredExtractor.
func NewStructuredExtractor(reader StyledDocumentReader, h *routes.Heuristics, retry resilience.RetryConfig) *StructuredExtractor {
	if h == nil {
		h = routes.DefaultHeuristics()
	}
	return &StructuredExtractor{reader: reader, heuristics: h, retry: retry}
}

// Method implements Extractor.
func (x *StructuredExtractor) Method() models.ExtractionMethod {
	return models.ExtractionDeterministic
}

// Extract implements Extractor.
func (x *StructuredExtractor) Extract(ctx context.Context, item models.WorkItem) ([]models.RouteDraft, error) {
	logCtx := zap.L().With(zap.String("sourceId", item.SourceID), zap.String("sourceName", item.SourceName))

	doc, err := resilience.DoVal(ctx, x.retry.Named("docs", "readStyledDocument"), func(ctx context.Context) (*models.StyledDocument, error) {
		return x.reader.ReadStyledDocument(ctx, item.SourceID)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "read styled document %s", item.SourceID)
	}

	lines := x.MarkedLines(doc)
	stops := x.StopsFromLines(lines)
	logCtx.Debug("marked lines parsed", zap.Int("lines", len(lines)), zap.Int("stops", len(stops)))
	if len(stops) == 0 {
		return nil, eris.Wrapf(ErrExtractionQuality, "no marked stops in %q", item.SourceName)
	}

	school := item.SchoolNameHint
	if school == "" {
		school = doc.Title
	}

	buckets := make(map[models.Period][]models.StopRecord)
	for _, s := range stops {
		p := routes.StopPeriod(s.Time)
		buckets[p] = append(buckets[p], s)
	}

	var drafts []models.RouteDraft
	for _, p := range periodOrder {
		if len(buckets[p]) == 0 {
			continue
		}
		drafts = append(drafts, models.RouteDraft{
			BusNumber:  item.BusNumberHint,
			SchoolName: school,
			Period:     p,
			Stops:      buckets[p],
		})
	}
	return drafts, nil
}

// MarkedLines returns the red-marked text of doc as trimmed lines. Unmarked
// text between two marked runs splits them into separate lines; unmarked
// whitespace between them is kept as a single space.
func (x *StructuredExtractor) MarkedLines(doc *models.StyledDocument) []string {
	if doc == nil {
		return nil
	}
	var lines []string
	flush := func(b *strings.Builder) {
		for _, l := range strings.FieldsFunc(b.String(), func(r rune) bool {
			return r == '\n' || r == '\v' || r == '\r'
		}) {
			if l = routes.CollapseSpaces(l); l != "" {
				lines = append(lines, l)
			}
		}
		b.Reset()
	}

	for _, para := range doc.Paragraphs {
		var cur strings.Builder
		for _, run := range para.Runs {
			if run.HasColor && x.heuristics.IsMarkedColor(run.Red, run.Green, run.Blue) {
				cur.WriteString(run.Text)
				continue
			}
			if strings.TrimSpace(run.Text) != "" {
				flush(&cur)
				continue
			}
			switch {
			case cur.Len() == 0 || run.Text == "":
			case strings.ContainsAny(run.Text, "\n\v\r"):
				cur.WriteByte('\n')
			default:
				cur.WriteByte(' ')
			}
		}
		flush(&cur)
	}
	return lines
}

// StopsFromLines keeps lines that are a timed stop or look like an address,
// skipping driving instructions.
func (x *StructuredExtractor) StopsFromLines(lines []string) []models.StopRecord {
	var stops []models.StopRecord
	for _, line := range lines {
		if x.heuristics.IsManeuver(line) {
			continue
		}
		clock, rest, ok := routes.SplitLeadingTime(line)
		if clock != "" && !ok {
			// a bare time with nothing after it
			continue
		}
		if ok {
			if x.heuristics.IsManeuver(rest) {
				continue
			}
			stops = append(stops, models.StopRecord{Time: clock, Location: rest})
			continue
		}
		if x.heuristics.LooksLikeAddress(line) {
			stops = append(stops, models.StopRecord{Location: line})
		}
	}
	return stops
}
