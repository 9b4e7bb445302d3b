package models

import (
	"time"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned by document store lookups that match nothing.
var ErrNotFound = eris.New("not found")

// Mime types seen in the source collections.
const (
	MimeFolder    = "application/vnd.google-apps.folder"
	MimeGoogleDoc = "application/vnd.google-apps.document"
	MimePDF       = "application/pdf"
	MimeJSON      = "application/json"
)

// SourceFile describes one entry in the hierarchical document store. ID is
// stable across renames.
type SourceFile struct {
	ID           string
	Name         string
	MimeType     string
	ModifiedTime time.Time
	CreatedTime  time.Time
	WebViewLink  string
}

// LatestTimestamp returns the later of the modified and created times.
func (f SourceFile) LatestTimestamp() time.Time {
	if f.CreatedTime.After(f.ModifiedTime) {
		return f.CreatedTime
	}
	return f.ModifiedTime
}

// StyledRun is a run of text sharing one foreground colour. HasColor is false
// when the document leaves the colour at its default.
type StyledRun struct {
	Text     string
	HasColor bool
	Red      float64
	Green    float64
	Blue     float64
}

// StyledParagraph is one paragraph (or table cell paragraph) of a formatted document.
type StyledParagraph struct {
	Runs []StyledRun
}

// StyledDocument is a formatted document with inline style metadata.
type StyledDocument struct {
	ID         string
	Title      string
	Paragraphs []StyledParagraph
}

// LogEntry is one record in the append-only operational log.
type LogEntry struct {
	Timestamp time.Time `firestore:"timestamp"`
	Level     string    `firestore:"level"`
	RunID     string    `firestore:"runId"`
	SourceID  string    `firestore:"sourceId,omitempty"`
	Message   string    `firestore:"message"`
}
