package app

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"github.com/rotisserie/eris"

	"github.com/Lllllllleong/routeingest/internal/config"
	"github.com/Lllllllleong/routeingest/internal/gcp"
	"github.com/Lllllllleong/routeingest/internal/localstore"
	"github.com/Lllllllleong/routeingest/internal/services"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenStates opens only the state repository for mode, for inspection
// commands that need no other collaborator.
func OpenStates(ctx context.Context, cfg *config.Config, mode Mode) (services.StateRepository, io.Closer, error) {
	if mode == ModeLocal {
		return localstore.NewFileStateRepository(cfg.State.LocalPath), nopCloser{}, nil
	}
	if cfg.State.Bucket == "" {
		return nil, nil, eris.Wrap(services.ErrConfiguration, "state.bucket is not set")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, nil, eris.Wrap(err, "failed to create storage client")
	}
	return gcp.NewGCSStateRepository(client, cfg.State.Bucket, cfg.State.Object), client, nil
}
