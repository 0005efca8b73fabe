package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"mediaforge/internal/adapter/repo"
	"mediaforge/internal/generate"
	"mediaforge/internal/infra"
	"mediaforge/internal/pipeline"
	"mediaforge/internal/providers"
	"mediaforge/internal/providers/common"
	"mediaforge/internal/queue"
	"mediaforge/internal/secrets"
	"mediaforge/internal/storage"
	"mediaforge/internal/transport"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	var blobs storage.BlobStore
	switch cfg.StorageBackend {
	case "minio":
		blobs, err = storage.NewObjectStore(ctx, storage.ObjectStoreOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		blobs, err = storage.NewFileStore(cfg.StoragePath)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	client := transport.NewClient(transport.Options{
		RequestTimeout:    cfg.RequestTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Logger:            &logger,
	})
	registry := providers.NewRegistry(common.Deps{
		Doer:    client,
		Secrets: secrets.NewEnvStore(),
		Logger:  logger,
	})

	artifacts := pipeline.New(blobs, pipeline.NewFFmpegExtractor(), logger)
	sets := repo.NewSetRepository(pool)
	orchestrator := generate.New(registry, artifacts, sets, logger)
	engine := queue.New(repo.NewJobRepository(pool), orchestrator, logger, queue.Options{
		IdleInterval: cfg.JobIdleInterval,
		Retention:    cfg.FailedRetention,
		SweepSpec:    cfg.SweepSpec,
		Sets:         sets,
	})

	if err := engine.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
