package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/bulkmailer/internal/api"
	"github.com/ignite/bulkmailer/internal/bounce"
	"github.com/ignite/bulkmailer/internal/config"
	"github.com/ignite/bulkmailer/internal/dispatch"
	"github.com/ignite/bulkmailer/internal/pkg/distlock"
	"github.com/ignite/bulkmailer/internal/pkg/logger"
	"github.com/ignite/bulkmailer/internal/repository/postgres"
	"github.com/ignite/bulkmailer/internal/sender"
	"github.com/ignite/bulkmailer/internal/service/campaign"
	"github.com/ignite/bulkmailer/internal/service/provider"
	"github.com/ignite/bulkmailer/internal/service/suppression"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("database url is required (config database.url or DATABASE_URL)")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := db.PingContext(ctx); err != nil {
		cancel()
		log.Fatalf("ping database: %v", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		cancel()
		log.Fatalf("migrate: %v", err)
	}
	cancel()
	logger.Info("database ready")

	var redisClient *redis.Client
	if cfg.Redis.Enabled && cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			// Plain host:port is also accepted.
			opts = &redis.Options{Addr: cfg.Redis.URL}
		}
		redisClient = redis.NewClient(opts)
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable, falling back to advisory locks", "error", err.Error())
			redisClient.Close()
			redisClient = nil
		}
		pingCancel()
		defer func() {
			if redisClient != nil {
				redisClient.Close()
			}
		}()
	}

	suppressionRepo := postgres.NewSuppressionRepo(db)
	suppressionSvc := suppression.NewService(suppressionRepo)
	warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := suppressionSvc.Refresh(warmCtx); err != nil {
		warmCancel()
		log.Fatalf("warm suppression index: %v", err)
	}
	warmCancel()
	logger.Info("suppression index warmed", "entries", suppressionSvc.Size())

	sender.SetSESDefaults(cfg.SES.Region, cfg.SES.AccessKey, cfg.SES.SecretKey)

	campaignSvc := campaign.NewService(postgres.NewCampaignRepo(db), suppressionSvc)
	campaignSvc.SetDefaultThrottle(cfg.Dispatch.DefaultThrottle)
	providerSvc := provider.NewService(postgres.NewProviderRepo(db))

	dispatcher := dispatch.NewDispatcher(
		postgres.NewDispatchStore(db),
		suppressionSvc,
		func(campaignID string) distlock.DistLock {
			return distlock.NewLock(redisClient, db, distlock.CampaignRunKey(campaignID), cfg.Dispatch.LockTTL())
		},
		nil, // default sender factory
		dispatch.Options{
			MaxAttempts:  cfg.Dispatch.MaxAttempts,
			RetryBackoff: cfg.Dispatch.RetryBackoff(),
			BatchSize:    cfg.Dispatch.BatchSize,
		},
	)

	bounceRepo := postgres.NewBounceRepo(db)
	processor := bounce.NewProcessor(bounceRepo, suppressionSvc)

	pollerCtx, pollerCancel := context.WithCancel(context.Background())
	defer pollerCancel()
	if cfg.Bounce.Enabled {
		if redisClient == nil {
			logger.Warn("bounce polling enabled but redis is unavailable, relying on the ingest endpoint only")
		} else {
			poller := bounce.NewPoller(bounce.NewRedisSource(redisClient), processor, cfg.Bounce.PollInterval())
			go poller.Run(pollerCtx)
		}
	}

	handlers := api.NewHandlers(campaignSvc, providerSvc, suppressionSvc, dispatcher, processor, bounceRepo)
	server := api.NewServer(cfg.Server.GetHost(), cfg.Server.Port, api.SetupRoutes(handlers))

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-done:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server failed: %v", err)
		}
		return
	}

	// Pause active runs first so every in-flight recipient lands in a
	// clean state, then drain HTTP.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Warn("dispatcher shutdown incomplete", "error", err.Error())
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err.Error())
	}
	logger.Info("goodbye")
}
