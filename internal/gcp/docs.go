package gcp

import (
	"context"

	"github.com/rotisserie/eris"
	"google.golang.org/api/docs/v1"
	"google.golang.org/api/option"

	"github.com/Lllllllleong/routeingest/internal/models"
)

// DocsReader reads formatted Google Docs with their text colours.
type DocsReader struct {
	svc *docs.Service
}

// NewDocsReader creates a Docs API client with application default credentials.
func NewDocsReader(ctx context.Context, opts ...option.ClientOption) (*DocsReader, error) {
	svc, err := docs.NewService(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "failed to create docs service")
	}
	return &DocsReader{svc: svc}, nil
}

// ReadStyledDocument fetches a document and flattens its body, table cells
// included, into styled paragraphs.
func (r *DocsReader) ReadStyledDocument(ctx context.Context, docID string) (*models.StyledDocument, error) {
	doc, err := r.svc.Documents.Get(docID).Context(ctx).Do()
	if err != nil {
		return nil, driveError(err, "get document "+docID)
	}
	return styledDocument(doc), nil
}

func styledDocument(doc *docs.Document) *models.StyledDocument {
	out := &models.StyledDocument{ID: doc.DocumentId, Title: doc.Title}
	if doc.Body != nil {
		out.Paragraphs = collectParagraphs(doc.Body.Content, nil)
	}
	return out
}

func collectParagraphs(elems []*docs.StructuralElement, out []models.StyledParagraph) []models.StyledParagraph {
	for _, el := range elems {
		switch {
		case el.Paragraph != nil:
			out = append(out, styledParagraph(el.Paragraph))
		case el.Table != nil:
			for _, row := range el.Table.TableRows {
				for _, cell := range row.TableCells {
					out = collectParagraphs(cell.Content, out)
				}
			}
		}
	}
	return out
}

func styledParagraph(p *docs.Paragraph) models.StyledParagraph {
	var para models.StyledParagraph
	for _, el := range p.Elements {
		if el.TextRun == nil {
			continue
		}
		run := models.StyledRun{Text: el.TextRun.Content}
		if st := el.TextRun.TextStyle; st != nil && st.ForegroundColor != nil &&
			st.ForegroundColor.Color != nil && st.ForegroundColor.Color.RgbColor != nil {
			rgb := st.ForegroundColor.Color.RgbColor
			run.HasColor = true
			run.Red, run.Green, run.Blue = rgb.Red, rgb.Green, rgb.Blue
		}
		para.Runs = append(para.Runs, run)
	}
	return para
}
