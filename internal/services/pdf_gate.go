package services

import (
	"bytes"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rotisserie/eris"
)

// pageCounter returns the number of pages in a PDF.
type pageCounter func(content []byte) (int, error)

// relaxedPDFConfig tolerates the minor structural defects common in scanner output.
func relaxedPDFConfig() *model.Configuration {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}

func pdfPageCount(content []byte) (int, error) {
	return api.PageCount(bytes.NewReader(content), relaxedPDFConfig())
}

// checkScannedPDF rejects PDFs that cannot be parsed or that have more pages
// than OCR is allowed to spend on. maxPages <= 0 disables the size check.
func checkScannedPDF(content []byte, maxPages int, count pageCounter) (int, error) {
	if len(content) == 0 {
		return 0, eris.Wrap(ErrExtractionQuality, "scanned document is empty")
	}
	pages, err := count(content)
	if err != nil {
		return 0, eris.Wrapf(ErrExtractionQuality, "scanned document is not a readable PDF: %v", err)
	}
	if pages == 0 {
		return 0, eris.Wrap(ErrExtractionQuality, "scanned document has no pages")
	}
	if maxPages > 0 && pages > maxPages {
		return pages, eris.Wrapf(ErrExtractionQuality, "scanned document has %d pages, limit is %d", pages, maxPages)
	}
	return pages, nil
}
