package models

import "time"

// LatLng is a resolved coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PipelineState is the single persisted aggregate threaded through a run.
// Processed and GeocodeCache only ever grow.
type PipelineState struct {
	Queue               []WorkItem        `json:"queue"`
	Cursor              int               `json:"cursor"`
	Processed           map[string]string `json:"processed"`
	GeocodeCache        map[string]LatLng `json:"geocodeCache"`
	PendingContinuation string            `json:"pendingContinuation,omitempty"`
	UpdatedAt           time.Time         `json:"updatedAt"`
}

// NewPipelineState returns an empty state with initialised maps.
func NewPipelineState() *PipelineState {
	s := &PipelineState{}
	s.Repair()
	return s
}

// Repair initialises nil maps and clamps the cursor into [0, len(queue)].
// It is applied to every state read from storage.
func (s *PipelineState) Repair() {
	if s.Processed == nil {
		s.Processed = make(map[string]string)
	}
	if s.GeocodeCache == nil {
		s.GeocodeCache = make(map[string]LatLng)
	}
	if s.Cursor < 0 {
		s.Cursor = 0
	}
	if s.Cursor > len(s.Queue) {
		s.Cursor = len(s.Queue)
	}
}

// QueueExhausted reports whether the queue is empty or fully consumed.
func (s *PipelineState) QueueExhausted() bool {
	return len(s.Queue) == 0 || s.Cursor >= len(s.Queue)
}

// ResetQueue replaces the queue and rewinds the cursor.
func (s *PipelineState) ResetQueue(items []WorkItem) {
	s.Queue = items
	s.Cursor = 0
}

// NextBatch returns the items in [cursor, cursor+size) without advancing.
func (s *PipelineState) NextBatch(size int) []WorkItem {
	if size <= 0 || s.QueueExhausted() {
		return nil
	}
	end := s.Cursor + size
	if end > len(s.Queue) {
		end = len(s.Queue)
	}
	return s.Queue[s.Cursor:end]
}

// Advance moves the cursor forward by n, never past the end of the queue.
func (s *PipelineState) Advance(n int) {
	s.Cursor += n
	if s.Cursor > len(s.Queue) {
		s.Cursor = len(s.Queue)
	}
}

// IsProcessed reports whether the item's current revision was already published.
func (s *PipelineState) IsProcessed(item WorkItem) bool {
	fp, ok := s.Processed[item.SourceID]
	return ok && fp == item.Fingerprint()
}

// MarkProcessed records the item's current fingerprint.
func (s *PipelineState) MarkProcessed(item WorkItem) {
	s.Processed[item.SourceID] = item.Fingerprint()
}

// CachedCoordinates looks up a geocode cache entry by its normalised key.
func (s *PipelineState) CachedCoordinates(key string) (LatLng, bool) {
	ll, ok := s.GeocodeCache[key]
	return ll, ok
}

// CacheCoordinates inserts a geocode cache entry. Existing entries are kept.
func (s *PipelineState) CacheCoordinates(key string, ll LatLng) {
	if _, ok := s.GeocodeCache[key]; ok {
		return
	}
	s.GeocodeCache[key] = ll
}
