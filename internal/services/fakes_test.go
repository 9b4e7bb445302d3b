package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Lllllllleong/routeingest/internal/models"
	"github.com/Lllllllleong/routeingest/internal/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     1,
	}
}

// fakeStore is an in-memory hierarchical document store.
type fakeStore struct {
	mu       sync.Mutex
	files    map[string]models.SourceFile
	parents  map[string]string
	content  map[string][]byte
	nextID   int
	reads    int
	writes   int
	ensures  int
	listings int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		files:   make(map[string]models.SourceFile),
		parents: make(map[string]string),
		content: make(map[string][]byte),
	}
}

func (s *fakeStore) add(parentID string, f models.SourceFile, content []byte) models.SourceFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == "" {
		s.nextID++
		f.ID = fmt.Sprintf("file-%d", s.nextID)
	}
	s.files[f.ID] = f
	s.parents[f.ID] = parentID
	if content != nil {
		s.content[f.ID] = content
	}
	return f
}

func (s *fakeStore) addFolder(parentID, id, name string) models.SourceFile {
	return s.add(parentID, models.SourceFile{ID: id, Name: name, MimeType: models.MimeFolder}, nil)
}

func (s *fakeStore) childNamed(parentID, name string) (models.SourceFile, bool) {
	for id, f := range s.files {
		if s.parents[id] == parentID && f.Name == name {
			return f, true
		}
	}
	return models.SourceFile{}, false
}

// artifact returns the content of {parent}/{folder}/{name}.
func (s *fakeStore) artifact(parentID, folder, name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir, ok := s.childNamed(parentID, folder)
	if !ok {
		return nil, false
	}
	f, ok := s.childNamed(dir.ID, name)
	if !ok {
		return nil, false
	}
	return s.content[f.ID], true
}

func (s *fakeStore) GetFolder(_ context.Context, folderID string) (models.SourceFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[folderID]
	if !ok || f.MimeType != models.MimeFolder {
		return models.SourceFile{}, models.ErrNotFound
	}
	return f, nil
}

func (s *fakeStore) ListFolders(ctx context.Context, parentID string) ([]models.SourceFile, error) {
	return s.ListFiles(ctx, parentID, models.MimeFolder)
}

func (s *fakeStore) ListFiles(_ context.Context, parentID string, mimeTypes ...string) ([]models.SourceFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings++
	var out []models.SourceFile
	for id, f := range s.files {
		if s.parents[id] != parentID {
			continue
		}
		for _, m := range mimeTypes {
			if f.MimeType == m {
				out = append(out, f)
				break
			}
		}
	}
	sortByName(out)
	return out, nil
}

func (s *fakeStore) EnsureFolder(_ context.Context, parentID, name string) (models.SourceFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensures++
	if parent, ok := s.files[parentID]; !ok || parent.MimeType != models.MimeFolder {
		return models.SourceFile{}, models.ErrNotFound
	}
	if f, ok := s.childNamed(parentID, name); ok {
		return f, nil
	}
	s.nextID++
	f := models.SourceFile{ID: fmt.Sprintf("folder-%d", s.nextID), Name: name, MimeType: models.MimeFolder}
	s.files[f.ID] = f
	s.parents[f.ID] = parentID
	return f, nil
}

func (s *fakeStore) WriteFile(_ context.Context, parentID, name, mimeType string, content []byte) (models.SourceFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	f, ok := s.childNamed(parentID, name)
	if !ok {
		s.nextID++
		f = models.SourceFile{ID: fmt.Sprintf("file-%d", s.nextID), Name: name, MimeType: mimeType}
		s.files[f.ID] = f
		s.parents[f.ID] = parentID
	}
	s.content[f.ID] = append([]byte(nil), content...)
	return f, nil
}

func (s *fakeStore) ReadFile(_ context.Context, fileID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	c, ok := s.content[fileID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return c, nil
}

func sortByName(files []models.SourceFile) {
	for i := 1; i < len(files); i++ {
		for j := i; j > 0 && files[j].Name < files[j-1].Name; j-- {
			files[j], files[j-1] = files[j-1], files[j]
		}
	}
}

type fakeReader struct {
	docs  map[string]*models.StyledDocument
	calls int
}

func (r *fakeReader) ReadStyledDocument(_ context.Context, docID string) (*models.StyledDocument, error) {
	r.calls++
	d, ok := r.docs[docID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return d, nil
}

type fakeOCR struct {
	texts map[string]string
	calls int
}

func (o *fakeOCR) ConvertToText(_ context.Context, file models.SourceFile) (string, error) {
	o.calls++
	return o.texts[file.ID], nil
}

type fakeGenerator struct {
	response string
	err      error
	prompts  []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

type fakeGeo struct {
	results map[string]models.LatLng
	calls   int
}

func (g *fakeGeo) Geocode(_ context.Context, query string) (models.LatLng, bool, error) {
	g.calls++
	ll, ok := g.results[query]
	return ll, ok, nil
}

// fakeStates round-trips state through JSON like a real repository.
type fakeStates struct {
	data  []byte
	loads int
	saves int
}

func (f *fakeStates) Load(context.Context) (*models.PipelineState, error) {
	f.loads++
	state := models.NewPipelineState()
	if f.data != nil {
		if err := json.Unmarshal(f.data, state); err != nil {
			return nil, err
		}
	}
	return state, nil
}

func (f *fakeStates) Save(_ context.Context, state *models.PipelineState) error {
	f.saves++
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	f.data = data
	return nil
}

func (f *fakeStates) current() *models.PipelineState {
	state, _ := f.Load(context.Background())
	f.loads--
	return state
}

type fakeLocker struct {
	held     bool
	acquires int
	releases int
}

func (l *fakeLocker) Acquire(context.Context, time.Duration) (bool, error) {
	l.acquires++
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *fakeLocker) Release(context.Context) error {
	l.releases++
	l.held = false
	return nil
}

type fakeScheduler struct {
	scheduled []time.Duration
	cancelled []string
}

func (s *fakeScheduler) Schedule(_ context.Context, delay time.Duration) (string, error) {
	s.scheduled = append(s.scheduled, delay)
	return fmt.Sprintf("exec-%d", len(s.scheduled)), nil
}

func (s *fakeScheduler) Cancel(_ context.Context, handle string) error {
	s.cancelled = append(s.cancelled, handle)
	return nil
}

type fakeSink struct {
	entries []models.LogEntry
}

func (s *fakeSink) Append(_ context.Context, entry models.LogEntry) error {
	s.entries = append(s.entries, entry)
	return nil
}

type fakeMirror struct {
	objects map[string][]byte
}

func (m *fakeMirror) Mirror(_ context.Context, objectName string, content []byte) error {
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[objectName] = content
	return nil
}

// redRun and plainRun build styled document runs.
func redRun(text string) models.StyledRun {
	return models.StyledRun{Text: text, HasColor: true, Red: 1}
}

func plainRun(text string) models.StyledRun {
	return models.StyledRun{Text: text}
}
