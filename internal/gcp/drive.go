package gcp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Lllllllleong/routeingest/internal/models"
)

const driveFileFields = "id,name,mimeType,modifiedTime,createdTime,webViewLink,trashed"

// DriveStore is the hierarchical document store backed by Google Drive.
// Shared drives are supported.
type DriveStore struct {
	svc *drive.Service
}

// NewDriveService creates a Drive API client with application default credentials.
func NewDriveService(ctx context.Context, opts ...option.ClientOption) (*drive.Service, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "failed to create drive service")
	}
	return svc, nil
}

// NewDriveStore wraps a Drive API client.
func NewDriveStore(svc *drive.Service) *DriveStore {
	return &DriveStore{svc: svc}
}

// GetFolder returns the folder with the given id, or models.ErrNotFound.
func (s *DriveStore) GetFolder(ctx context.Context, folderID string) (models.SourceFile, error) {
	f, err := s.svc.Files.Get(folderID).
		Fields(driveFileFields).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return models.SourceFile{}, driveError(err, "get folder "+folderID)
	}
	if f.Trashed || f.MimeType != models.MimeFolder {
		return models.SourceFile{}, eris.Wrapf(models.ErrNotFound, "folder %s", folderID)
	}
	return toSourceFile(f), nil
}

// ListFolders lists the direct sub-folders of parentID.
func (s *DriveStore) ListFolders(ctx context.Context, parentID string) ([]models.SourceFile, error) {
	return s.ListFiles(ctx, parentID, models.MimeFolder)
}

// ListFiles lists the direct children of parentID with any of the given mime types.
func (s *DriveStore) ListFiles(ctx context.Context, parentID string, mimeTypes ...string) ([]models.SourceFile, error) {
	return s.query(ctx, childQuery(parentID, "", mimeTypes...))
}

// EnsureFolder returns the sub-folder of parentID named name, creating it if absent.
func (s *DriveStore) EnsureFolder(ctx context.Context, parentID, name string) (models.SourceFile, error) {
	existing, err := s.query(ctx, childQuery(parentID, name, models.MimeFolder))
	if err != nil {
		return models.SourceFile{}, err
	}
	if len(existing) > 0 {
		return existing[0], nil
	}

	created, err := s.svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: models.MimeFolder,
		Parents:  []string{parentID},
	}).Fields(driveFileFields).SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return models.SourceFile{}, driveError(err, "create folder "+name)
	}
	zap.L().Info("created folder", zap.String("parentId", parentID), zap.String("name", name), zap.String("folderId", created.Id))
	return toSourceFile(created), nil
}

// WriteFile creates name under parentID or replaces the content of the
// existing file of that name.
func (s *DriveStore) WriteFile(ctx context.Context, parentID, name, mimeType string, content []byte) (models.SourceFile, error) {
	existing, err := s.query(ctx, childQuery(parentID, name)+" and mimeType != '"+models.MimeFolder+"'")
	if err != nil {
		return models.SourceFile{}, err
	}

	media := googleapi.ContentType(mimeType)
	if len(existing) > 0 {
		updated, err := s.svc.Files.Update(existing[0].ID, &drive.File{}).
			Media(bytes.NewReader(content), media).
			Fields(driveFileFields).
			SupportsAllDrives(true).
			Context(ctx).
			Do()
		if err != nil {
			return models.SourceFile{}, driveError(err, "update "+name)
		}
		return toSourceFile(updated), nil
	}

	created, err := s.svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: mimeType,
		Parents:  []string{parentID},
	}).Media(bytes.NewReader(content), media).
		Fields(driveFileFields).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return models.SourceFile{}, driveError(err, "create "+name)
	}
	return toSourceFile(created), nil
}

// ReadFile downloads the raw bytes of a file.
func (s *DriveStore) ReadFile(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := s.svc.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, driveError(err, "download "+fileID)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", fileID)
	}
	return body, nil
}

func (s *DriveStore) query(ctx context.Context, q string) ([]models.SourceFile, error) {
	var out []models.SourceFile
	err := s.svc.Files.List().
		Q(q).
		Fields(googleapi.Field("nextPageToken, files(" + driveFileFields + ")")).
		OrderBy("name").
		PageSize(200).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				out = append(out, toSourceFile(f))
			}
			return nil
		})
	if err != nil {
		return nil, driveError(err, "list files")
	}
	return out, nil
}

// childQuery builds a Drive search query for the untrashed children of parentID.
func childQuery(parentID, name string, mimeTypes ...string) string {
	var b strings.Builder
	b.WriteString("'" + escapeQuery(parentID) + "' in parents and trashed = false")
	if name != "" {
		b.WriteString(" and name = '" + escapeQuery(name) + "'")
	}
	if len(mimeTypes) > 0 {
		clauses := make([]string, len(mimeTypes))
		for i, m := range mimeTypes {
			clauses[i] = "mimeType = '" + escapeQuery(m) + "'"
		}
		b.WriteString(" and (" + strings.Join(clauses, " or ") + ")")
	}
	return b.String()
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

func toSourceFile(f *drive.File) models.SourceFile {
	return models.SourceFile{
		ID:           f.Id,
		Name:         f.Name,
		MimeType:     f.MimeType,
		ModifiedTime: parseDriveTime(f.ModifiedTime),
		CreatedTime:  parseDriveTime(f.CreatedTime),
		WebViewLink:  f.WebViewLink,
	}
}

func parseDriveTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// driveError maps 404 to models.ErrNotFound and wraps everything else.
func driveError(err error, op string) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return eris.Wrap(models.ErrNotFound, op)
	}
	return eris.Wrap(err, op)
}
