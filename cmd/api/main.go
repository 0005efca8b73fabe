package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mediaforge/internal/adapter/repo"
	httpapi "mediaforge/internal/http"
	"mediaforge/internal/infra"
	"mediaforge/internal/providers"
	"mediaforge/internal/providers/common"
	"mediaforge/internal/queue"
	"mediaforge/internal/secrets"
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
		logger.Fatal().Err(err).Msg("api: db connection failed")
	}
	defer pool.Close()

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

	jobs := repo.NewJobRepository(pool)
	sets := repo.NewSetRepository(pool)
	// The api process only enqueues and cancels; the worker process runs the
	// engine loop against the same job table.
	engine := queue.New(jobs, nil, logger, queue.Options{Retention: cfg.FailedRetention})

	var static http.Handler
	if cfg.StorageBackend == "file" {
		static = http.FileServer(http.Dir(cfg.StoragePath))
	}

	router := httpapi.NewRouter(&httpapi.API{
		Engine:   engine,
		Jobs:     jobs,
		Sets:     sets,
		Registry: registry,
		Static:   static,
		Logger:   logger,
	})

	server := infra.NewHTTPServer(cfg, router)
	go func() {
		logger.Info().Msgf("api: listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("api: http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: failed to shutdown server")
	}
	logger.Info().Msg("api: stopped")
}
