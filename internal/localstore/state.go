// Package localstore holds single-process stand-ins for the cloud state,
// lock and scheduler, used by the routeflow CLI and its worker.
package localstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/Lllllllleong/routeingest/internal/models"
)

// FileStateRepository keeps the pipeline state in a JSON file.
type FileStateRepository struct {
	path string
	mu   sync.Mutex
}

// NewFileStateRepository creates a repository backed by path.
func NewFileStateRepository(path string) *FileStateRepository {
	return &FileStateRepository{path: path}
}

// Load reads the state. A missing or empty file yields a fresh state.
func (r *FileStateRepository) Load(_ context.Context) (*models.PipelineState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return models.NewPipelineState(), nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "read state file %s", r.path)
	}

	state := models.NewPipelineState()
	if len(bytes.TrimSpace(data)) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, eris.Wrapf(err, "decode state file %s", r.path)
	}
	state.Repair()
	return state, nil
}

// Save writes the state through a temp file and rename, so a crash never
// leaves a truncated file behind.
func (r *FileStateRepository) Save(_ context.Context, state *models.PipelineState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encode state")
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "create state dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return eris.Wrap(err, "create temp state file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return eris.Wrap(err, "write temp state file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "close temp state file")
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return eris.Wrapf(err, "replace state file %s", r.path)
	}
	return nil
}
