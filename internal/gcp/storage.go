package gcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"

	"github.com/Lllllllleong/routeingest/internal/models"
)

// ErrStateConflict means the state object changed since it was loaded,
// which only happens if another run outlived its lock lease.
var ErrStateConflict = eris.New("pipeline state changed since load")

// stateObject is the single object holding the state. Generation 0 means
// the object does not exist.
type stateObject interface {
	read(ctx context.Context) (data []byte, generation int64, err error)
	// write replaces the object only if it is still at generation, returning
	// ErrStateConflict otherwise.
	write(ctx context.Context, data []byte, generation int64) (int64, error)
}

// GCSStateRepository persists the pipeline state as one JSON object. Saves
// are conditioned on the generation seen at load time.
type GCSStateRepository struct {
	object stateObject

	mu         sync.Mutex
	generation int64
}

// NewGCSStateRepository creates a repository for gs://bucket/object.
func NewGCSStateRepository(client *storage.Client, bucket, object string) *GCSStateRepository {
	return &GCSStateRepository{object: &gcsStateObject{handle: client.Bucket(bucket).Object(object)}}
}

// Load reads the state. A missing object yields a fresh empty state.
func (r *GCSStateRepository) Load(ctx context.Context) (*models.PipelineState, error) {
	data, gen, err := r.object.read(ctx)
	if err != nil {
		return nil, err
	}
	state, err := decodeState(data)
	if err != nil {
		return nil, err
	}
	r.setGeneration(gen)
	return state, nil
}

// Save writes the state if nobody else wrote it since Load.
func (r *GCSStateRepository) Save(ctx context.Context, state *models.PipelineState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return eris.Wrap(err, "marshal pipeline state")
	}

	r.mu.Lock()
	gen := r.generation
	r.mu.Unlock()

	next, err := r.object.write(ctx, data, gen)
	if err != nil {
		return err
	}
	r.setGeneration(next)
	return nil
}

func (r *GCSStateRepository) setGeneration(gen int64) {
	r.mu.Lock()
	r.generation = gen
	r.mu.Unlock()
}

type gcsStateObject struct {
	handle *storage.ObjectHandle
}

func (o *gcsStateObject) read(ctx context.Context) ([]byte, int64, error) {
	reader, err := o.handle.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, eris.Wrapf(err, "open state object %s", o.handle.ObjectName())
	}
	defer reader.Close() //nolint:errcheck

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "read state object %s", o.handle.ObjectName())
	}
	return data, reader.Attrs.Generation, nil
}

func (o *gcsStateObject) write(ctx context.Context, data []byte, generation int64) (int64, error) {
	cond := storage.Conditions{DoesNotExist: true}
	if generation != 0 {
		cond = storage.Conditions{GenerationMatch: generation}
	}
	attrs, err := writeObject(ctx, o.handle.If(cond), data, "application/json")
	if err != nil {
		return 0, stateWriteError(err, o.handle.ObjectName())
	}
	return attrs.Generation, nil
}

// stateWriteError maps a failed precondition to ErrStateConflict.
func stateWriteError(err error, object string) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		return eris.Wrapf(ErrStateConflict, "state object %s", object)
	}
	return eris.Wrapf(err, "write state object %s", object)
}

// decodeState parses and repairs a stored state document.
func decodeState(data []byte) (*models.PipelineState, error) {
	state := models.NewPipelineState()
	if len(bytes.TrimSpace(data)) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, eris.Wrap(err, "decode pipeline state")
	}
	state.Repair()
	return state, nil
}

// GCSMirror keeps a copy of every published artifact in a bucket.
type GCSMirror struct {
	bucket *storage.BucketHandle
}

// NewGCSMirror creates a mirror writing into bucket.
func NewGCSMirror(client *storage.Client, bucket string) *GCSMirror {
	return &GCSMirror{bucket: client.Bucket(bucket)}
}

// Mirror overwrites objectName with content.
func (m *GCSMirror) Mirror(ctx context.Context, objectName string, content []byte) error {
	if _, err := writeObject(ctx, m.bucket.Object(objectName), content, "application/json"); err != nil {
		return eris.Wrapf(err, "mirror %s", objectName)
	}
	return nil
}

// writeObject uploads content and returns the new object attributes.
func writeObject(ctx context.Context, obj *storage.ObjectHandle, content []byte, contentType string) (*storage.ObjectAttrs, error) {
	writer := obj.NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, bytes.NewReader(content)); err != nil {
		_ = writer.Close()
		return nil, err
	}
	if err := writer.Close(); err != nil {
		zap.L().Debug("gcs writer close failed", zap.String("object", obj.ObjectName()), zap.Error(err))
		return nil, err
	}
	return writer.Attrs(), nil
}
