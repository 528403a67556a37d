package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"catalog-recon/internal/catalog"
	"catalog-recon/internal/config"
	"catalog-recon/internal/fileio"
	"catalog-recon/internal/reconcile/model"
	recSvc "catalog-recon/internal/reconcile/service"
	"catalog-recon/internal/staging"
	serverhttp "catalog-recon/server/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("config")
	}
	logger := config.SetupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore := openCatalog(ctx, cfg, logger)
	defer closeStore()

	locker := openLocker(ctx, cfg, logger)

	engine, err := recSvc.NewEngine(cfg.Dictionary(), cfg.Policy())
	if err != nil {
		logger.Fatal().Err(err).Msg("matching dictionary")
	}

	runs := staging.NewMemoryStore[*recSvc.Run](cfg.Runs.TTL, 10*time.Minute)
	defer runs.Close()

	sheets := fileio.NewFetcher(cfg.Sheet.Timeout, cfg.Sheet.RPS, cfg.Sheet.Burst)
	svc := recSvc.New(store, sheets, runs, locker, engine, logger)

	r := serverhttp.NewRouter(cfg, logger, svc)
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info().Str("addr", cfg.Addr()).Msg("server starting")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen")
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	logger.Info().Msg("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Msg("bye")
}

// openCatalog: Postgres, если задан database_url, иначе каталог в памяти (опционально из файла).
func openCatalog(ctx context.Context, cfg config.Config, logger zerolog.Logger) (catalog.Store, func()) {
	if cfg.DatabaseURL != "" {
		pg, err := catalog.OpenPostgres(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres")
		}
		logger.Info().Msg("catalog: postgres")
		return pg, func() { _ = pg.Close() }
	}

	var products []model.Product
	if cfg.CatalogSeed != "" {
		seed, err := catalog.LoadSeed(cfg.CatalogSeed)
		if err != nil {
			logger.Fatal().Err(err).Str("file", cfg.CatalogSeed).Msg("catalog seed")
		}
		products = seed
	}
	logger.Info().Int("products", len(products)).Msg("catalog: memory")
	return catalog.NewMemoryStore(products...), func() {}
}

// openLocker: Redis делит лок записи между репликами, без него хватает локального.
func openLocker(ctx context.Context, cfg config.Config, logger zerolog.Logger) staging.Locker {
	if cfg.RedisAddr == "" {
		return staging.NewLocalLocker()
	}
	rdb, err := staging.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, using in-process commit lock")
		return staging.NewLocalLocker()
	}
	logger.Info().Str("addr", cfg.RedisAddr).Msg("commit lock: redis")
	return staging.NewRedisLocker(rdb, "recon:")
}
