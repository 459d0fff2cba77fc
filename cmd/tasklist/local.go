package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fentz26/tasklist/internal/audit"
	"github.com/fentz26/tasklist/internal/config"
	"github.com/fentz26/tasklist/internal/controlplane"
	"github.com/fentz26/tasklist/internal/persist"
	"github.com/fentz26/tasklist/internal/scheduler"
	"github.com/fentz26/tasklist/internal/store"
)

// localApp is a loaded task collection with its persistence wired up.
type localApp struct {
	backend persist.Backend
	store   *store.Store
	service *controlplane.Service
	log     *zap.Logger
}

// openLocal opens the configured backend and loads the collection from it.
func openLocal(ctx context.Context, c *config.Config, log *zap.Logger) (*localApp, error) {
	opts, err := c.StorageOptions()
	if err != nil {
		return nil, err
	}

	backend, err := persist.Open(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", opts.Driver, err)
	}
	log.Info("Storage opened",
		zap.String("driver", backend.Name()),
		zap.String("path", opts.Path))

	sched := scheduler.New(backend, c.Persistence.Debounce,
		scheduler.WithLogger(log.Named("scheduler")))

	st, err := store.Open(ctx, sched, store.WithLogger(log.Named("store")))
	if err != nil {
		backend.Close()
		return nil, err
	}

	rec := audit.NewRecorder(log)
	return &localApp{
		backend: backend,
		store:   st,
		service: controlplane.NewService(st, rec, c.Validation.MaxLength, log.Named("service")),
		log:     log,
	}, nil
}

// saveAndClose writes whatever is pending and releases the backend.
func (r *localApp) saveAndClose(ctx context.Context) error {
	saveErr := r.store.ForceSave(ctx)
	if saveErr != nil {
		r.log.Error("Final save failed", zap.Error(saveErr))
	}
	if err := r.store.Close(); err != nil {
		r.log.Error("Storage close failed", zap.Error(err))
		if saveErr == nil {
			return err
		}
	}
	return saveErr
}
