package services

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/Lllllllleong/routeingest/internal/models"
)

var (
	// ErrConfiguration marks a missing collection or credential. It aborts the run.
	ErrConfiguration = eris.New("configuration error")
	// ErrExtractionQuality marks a document that yielded nothing usable. The
	// item is left for the next pass and the batch continues.
	ErrExtractionQuality = eris.New("extraction quality")
)

// DocumentStore is the hierarchical store holding source documents and
// published artifacts.
type DocumentStore interface {
	GetFolder(ctx context.Context, folderID string) (models.SourceFile, error)
	ListFolders(ctx context.Context, parentID string) ([]models.SourceFile, error)
	ListFiles(ctx context.Context, parentID string, mimeTypes ...string) ([]models.SourceFile, error)
	EnsureFolder(ctx context.Context, parentID, name string) (models.SourceFile, error)
	WriteFile(ctx context.Context, parentID, name, mimeType string, content []byte) (models.SourceFile, error)
	ReadFile(ctx context.Context, fileID string) ([]byte, error)
}

// StyledDocumentReader reads formatted documents with their text colours.
type StyledDocumentReader interface {
	ReadStyledDocument(ctx context.Context, docID string) (*models.StyledDocument, error)
}

// OCR converts a scanned document into plain text.
type OCR interface {
	ConvertToText(ctx context.Context, file models.SourceFile) (string, error)
}

// Generator runs a schema-constrained, temperature-0 generative extraction
// and returns the raw response text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// StateRepository loads and saves the single pipeline state document.
type StateRepository interface {
	Load(ctx context.Context) (*models.PipelineState, error)
	Save(ctx context.Context, state *models.PipelineState) error
}

// Locker is a named mutual-exclusion lock guarding a whole run.
type Locker interface {
	// Acquire waits up to wait for the lock. false means another run holds it.
	Acquire(ctx context.Context, wait time.Duration) (bool, error)
	Release(ctx context.Context) error
}

// Scheduler defers a future invocation of the run entrypoint.
type Scheduler interface {
	// Schedule arranges a run after delay and returns a handle for Cancel.
	Schedule(ctx context.Context, delay time.Duration) (string, error)
	Cancel(ctx context.Context, handle string) error
}

// LogSink is the append-only operational log.
type LogSink interface {
	Append(ctx context.Context, entry models.LogEntry) error
}

// ArtifactMirror keeps an optional second copy of each published artifact.
type ArtifactMirror interface {
	Mirror(ctx context.Context, objectName string, content []byte) error
}
