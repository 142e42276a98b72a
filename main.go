package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/creatorstation/dashboard/internal/analytics"
	"github.com/creatorstation/dashboard/internal/appcron"
	"github.com/creatorstation/dashboard/internal/config"
	"github.com/creatorstation/dashboard/internal/db"
	"github.com/creatorstation/dashboard/internal/influencers"
	"github.com/creatorstation/dashboard/internal/logging"
	"github.com/creatorstation/dashboard/internal/provider"
	"github.com/creatorstation/dashboard/internal/store"
	"github.com/creatorstation/dashboard/pkg/web"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := db.ConnectPostgres(cfg.Postgres.DSN, logger)
	if err != nil {
		logger.Fatal("postgres connection failed", zap.Error(err))
	}

	mongoDB, err := db.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		logger.Fatal("mongo connection failed", zap.Error(err))
	}
	defer mongoDB.Client().Disconnect(context.Background())

	identityStore := store.New(pg, mongoDB, logger.Named("store"))
	if err := identityStore.EnsureSchema(ctx); err != nil {
		logger.Fatal("schema setup failed", zap.Error(err))
	}

	gateway := provider.NewClient(provider.Options{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey,
		Timeout: cfg.Provider.Timeout,
	})

	writer := analytics.NewSyncWriter(identityStore, analytics.SyncWriterConfig{
		Memory: analytics.NewLRUMemory(cfg.Analytics.DedupCapacity),
		Window: cfg.Analytics.TTL,
		Logger: logger.Named("sync"),
	})

	engine := analytics.NewEngine(identityStore, gateway, analytics.EngineConfig{
		TTL:    cfg.Analytics.TTL,
		Writer: writer,
		Logger: logger.Named("analytics"),
	})

	refreshJob := appcron.NewRefreshJob(identityStore, engine, cfg.Refresh.Delay, logger.Named("refresh"))
	if cfg.Refresh.Enabled {
		scheduler, err := appcron.SetupRefreshCron(refreshJob, cfg.Refresh.Schedule, logger)
		if err != nil {
			logger.Fatal("refresh cron setup failed", zap.Error(err))
		}
		defer scheduler.Stop()
	}

	app := fiber.New()

	influencers.MountController(app, influencers.NewController(engine, web.FetchMedia, logger.Named("http")))
	appcron.MountController(app.Group("/admin"), refreshJob, identityStore)

	go func() {
		<-ctx.Done()
		if err := app.Shutdown(); err != nil {
			logger.Error("server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("port", cfg.Server.Port))
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
