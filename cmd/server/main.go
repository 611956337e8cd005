package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ventureops/internal/app"
	"ventureops/internal/handler"
	"ventureops/internal/httpserver"
	"ventureops/internal/repository"
	"ventureops/internal/repository/postgres"
	"ventureops/internal/repository/sqlite"
	"ventureops/pkg/circuitbreaker"
	"ventureops/pkg/config"
	"ventureops/pkg/db"
	"ventureops/pkg/logger"
	"ventureops/pkg/mq"
	"ventureops/pkg/otel"
	"ventureops/pkg/outbox"
	redisclient "ventureops/pkg/redis"
	"ventureops/pkg/util"
)

func main() {
	cfg, err := config.LoadConfig(config.ConfigEnv(), os.Getenv("CONFIG_DIR"))
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing, err := otel.Init(otel.Config{
		ServiceName: cfg.Otel.ServiceName,
		Endpoint:    cfg.Otel.Endpoint,
		Enabled:     cfg.Otel.Enabled,
	}, log)
	if err != nil {
		log.Fatal("Failed to init tracing", zap.Error(err))
	}
	defer shutdownTracing()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting ventureops server...",
		zap.String("env", cfg.Env),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("port", cfg.Server.Port),
	)

	// Storage
	var (
		store    repository.Store
		replayer handler.OutboxReplayer
		broker   httpserver.BrokerStatus
	)
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := db.NewConnection(ctx, cfg.DB, log)
		if err != nil {
			log.Fatal("DB initialization failed", zap.Error(err))
		}
		pgStore := postgres.NewStore(pool, log)
		if err := pgStore.Migrate(ctx); err != nil {
			log.Fatal("Migration failed", zap.Error(err))
		}
		store = pgStore

		if cfg.Outbox.Enabled {
			publisher, err := mq.NewPublisher(cfg.MQ.URL, cfg.MQ.Exchange)
			if err != nil {
				log.Fatal("Failed to init MQ publisher", zap.Error(err))
			}
			defer publisher.Close()
			broker = publisher

			outboxRepo := outbox.NewRepository(pool)
			replayer = outbox.NewReplayService(outboxRepo, publisher, log)

			dispatcher := outbox.NewDispatcher(outboxRepo, publisher, circuitbreaker.New(cfg.Outbox.Breaker), log).
				WithMaxRetries(cfg.Outbox.MaxRetries).
				WithInterval(cfg.Outbox.Interval).
				WithBatchSize(cfg.Outbox.BatchSize)
			go dispatcher.Start(ctx)
		}
	case "sqlite":
		sqliteStore, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatal("SQLite initialization failed", zap.Error(err))
		}
		store = sqliteStore
	}
	defer store.Close()
	log.Info("Storage ready", zap.String("driver", cfg.Storage.Driver))

	// Redis backs Idempotency-Key handling; without it the header is ignored.
	var idempotency httpserver.IdempotencyClaimer
	if cfg.Redis.Addr != "" {
		rdb, err := redisclient.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Warn("Redis unavailable, idempotency keys disabled", zap.Error(err))
		} else {
			defer func(c *goredis.Client) { _ = c.Close() }(rdb)
			idempotency = util.NewDeduper(rdb, "idem:tasks", cfg.Redis.IdempotencyTTL, log)
		}
	}

	router := httpserver.NewRouter(app.NewDeps(store, app.Options{
		JWTSecret:   cfg.JWT.Secret,
		JWTTTL:      cfg.JWT.TTL,
		Idempotency: idempotency,
		Replayer:    replayer,
		Broker:      broker,
		Logger:      log,
	}))

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("ventureops server shutdown complete")
}
