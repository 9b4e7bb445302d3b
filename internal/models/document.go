package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// RouteType tags which extraction strategy a work item needs.
type RouteType string

const (
	// RouteTypeRegEdDoc is a formatted route sheet with stops marked in red text.
	RouteTypeRegEdDoc RouteType = "RegEdDoc"
	// RouteTypeSpecEdPdf is a scanned route sheet stored under a bus-numbered folder.
	RouteTypeSpecEdPdf RouteType = "SpecEdPdf"
)

// WorkItem is one source document queued for extraction. It is immutable once enqueued.
type WorkItem struct {
	RouteType      RouteType `json:"routeType" firestore:"routeType"`
	SourceID       string    `json:"sourceId" firestore:"sourceId"`
	SourceName     string    `json:"sourceName" firestore:"sourceName"`
	MimeType       string    `json:"mimeType,omitempty" firestore:"mimeType,omitempty"`
	LastModifiedMs int64     `json:"lastModifiedMs" firestore:"lastModifiedMs"`
	BusNumberHint  string    `json:"busNumberHint,omitempty" firestore:"busNumberHint,omitempty"`
	SchoolNameHint string    `json:"schoolNameHint,omitempty" firestore:"schoolNameHint,omitempty"`
}

// Fingerprint returns the change-detection key for the item's current revision.
func (w WorkItem) Fingerprint() string {
	return Fingerprint(w.SourceID, w.LastModifiedMs)
}

// Fingerprint derives a stable key from a source id and its last-modified time.
func Fingerprint(sourceID string, lastModifiedMs int64) string {
	sum := sha256.Sum256([]byte(sourceID + ":" + strconv.FormatInt(lastModifiedMs, 10)))
	return hex.EncodeToString(sum[:16])
}
