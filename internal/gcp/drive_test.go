package gcp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/Lllllllleong/routeingest/internal/models"
)

func newTestDriveStore(t *testing.T, handler http.HandlerFunc) *DriveStore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	svc, err := NewDriveService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return NewDriveStore(svc)
}

func TestDriveStore_ListFilesPaginates(t *testing.T) {
	var queries []string
	store := newTestDriveStore(t, func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "" {
			_, _ = io.WriteString(w, `{"nextPageToken": "p2", "files": [
				{"id": "a", "name": "021 GUILFORD PARK.pdf", "mimeType": "application/pdf", "modifiedTime": "2026-09-01T10:00:00.000Z"}
			]}`)
			return
		}
		_, _ = io.WriteString(w, `{"files": [{"id": "b", "name": "HOLLIFIELD.pdf", "mimeType": "application/pdf"}]}`)
	})

	files, err := store.ListFiles(context.Background(), "bus21", models.MimePDF)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a", files[0].ID)
	assert.Equal(t, 2026, files[0].ModifiedTime.Year())
	assert.Equal(t, "b", files[1].ID)
	assert.Equal(t, "'bus21' in parents and trashed = false and (mimeType = 'application/pdf')", queries[0])
}

func TestDriveStore_GetFolderNotFound(t *testing.T) {
	store := newTestDriveStore(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error": {"code": 404, "message": "File not found"}}`)
	})

	_, err := store.GetFolder(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestDriveStore_GetFolderRejectsFiles(t *testing.T) {
	store := newTestDriveStore(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id": "x", "name": "x.pdf", "mimeType": "application/pdf"}`)
	})

	_, err := store.GetFolder(context.Background(), "x")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestChildQuery(t *testing.T) {
	assert.Equal(t,
		`'p' in parents and trashed = false and name = 'St. Mary\'s' and (mimeType = 'a' or mimeType = 'b')`,
		childQuery("p", "St. Mary's", "a", "b"))
	assert.Equal(t, `'p' in parents and trashed = false`, childQuery("p", ""))
}
