package gcp

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"

	"github.com/Lllllllleong/routeingest/internal/models"
)

// DriveOCR converts scanned documents to text by letting Drive import them
// as Google Docs with OCR, then exporting the result as plain text.
type DriveOCR struct {
	svc      *drive.Service
	language string
}

// NewDriveOCR creates a DriveOCR. language is an ISO 639-1 hint such as "en".
func NewDriveOCR(svc *drive.Service, language string) *DriveOCR {
	return &DriveOCR{svc: svc, language: language}
}

// ConvertToText returns the OCR text of file. The temporary Google Doc is
// always deleted.
func (o *DriveOCR) ConvertToText(ctx context.Context, file models.SourceFile) (string, error) {
	call := o.svc.Files.Copy(file.ID, &drive.File{
		Name:     file.Name + " (ocr)",
		MimeType: models.MimeGoogleDoc,
	}).Fields("id").SupportsAllDrives(true).Context(ctx)
	if o.language != "" {
		call = call.OcrLanguage(o.language)
	}
	converted, err := call.Do()
	if err != nil {
		return "", driveError(err, "ocr copy "+file.ID)
	}
	defer func() {
		if err := o.svc.Files.Delete(converted.Id).SupportsAllDrives(true).Context(context.WithoutCancel(ctx)).Do(); err != nil {
			zap.L().Warn("failed to delete ocr copy", zap.String("fileId", converted.Id), zap.Error(err))
		}
	}()

	resp, err := o.svc.Files.Export(converted.Id, "text/plain").Context(ctx).Download()
	if err != nil {
		return "", driveError(err, "ocr export "+converted.Id)
	}
	defer resp.Body.Close() //nolint:errcheck

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrapf(err, "read ocr export %s", converted.Id)
	}
	return string(text), nil
}
