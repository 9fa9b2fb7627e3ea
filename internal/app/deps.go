package app

import (
	"context"
	"time"

	"github.com/deepsight/backend/internal/auth"
	"github.com/deepsight/backend/internal/config"
	"github.com/deepsight/backend/internal/db"
	"github.com/deepsight/backend/internal/handlers"
	"github.com/deepsight/backend/internal/jobs"
	"github.com/deepsight/backend/internal/middleware"
	"github.com/deepsight/backend/internal/repositories"
	"github.com/deepsight/backend/internal/storage"
	"github.com/deepsight/backend/internal/stream"
)

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. Every store handle is passed explicitly; nothing hangs off
// package-level state.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, error) {
	accounts := repositories.NewPostgresAccountRepository(pool)
	files := repositories.NewPostgresFileRepository(pool)
	jobRecords := repositories.NewPostgresJobRepository(pool)

	tokens := auth.NewTokenManager(cfg.TokenSecret, cfg.TokenTTL)

	dispatcher := jobs.NewComputeClient(cfg.ComputeURL)
	lifecycle := jobs.NewService(files, jobRecords, dispatcher, cfg.DispatchTimeout)

	streamHandler := stream.NewHandler(stream.NewHTTPFrameProcessor(cfg.ComputeURL), cfg.FrameTimeout)
	if cfg.StreamRequireAuth {
		streamHandler.RequireAuth = true
		streamHandler.Tokens = tokens
	}

	store, err := buildObjectStorage(ctx, cfg)
	if err != nil {
		return handlers.Dependencies{}, err
	}

	return handlers.Dependencies{
		Accounts:      accounts,
		Tokens:        tokens,
		Jobs:          lifecycle,
		Files:         files,
		Storage:       store,
		Stream:        streamHandler,
		LoginLimiter:  middleware.NewKeyRateLimiter(cfg.LoginRateLimit, time.Minute, cfg.LoginRateBurst, 10*time.Minute),
		DevMode:       cfg.DevMode,
		MaxUploadSize: cfg.MaxUploadSize,
	}, nil
}

func buildObjectStorage(ctx context.Context, cfg config.Config) (storage.ObjectStorage, error) {
	if cfg.ObjectStore.Bucket != "" {
		return storage.NewS3Storage(ctx, cfg.ObjectStore)
	}
	return storage.NewFileSystemStorage(cfg.UploadDir)
}
