package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	contractmq "ventureops/contracts/mq"
	"ventureops/internal/mqhandler"
	"ventureops/internal/repository/postgres"
	"ventureops/pkg/config"
	"ventureops/pkg/db"
	"ventureops/pkg/logger"
	"ventureops/pkg/mq"
	"ventureops/pkg/otel"
	redisclient "ventureops/pkg/redis"
	"ventureops/pkg/util"
)

// The worker projects task events from the outbox into task_activity.
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

	shutdownTracing, err := otel.Init(otel.Config{
		ServiceName: cfg.Otel.ServiceName + "-worker",
		Endpoint:    cfg.Otel.Endpoint,
		Enabled:     cfg.Otel.Enabled,
	}, log)
	if err != nil {
		log.Fatal("Failed to init tracing", zap.Error(err))
	}
	defer shutdownTracing()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting worker service...")

	// Init DB
	pool, err := db.NewConnection(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	store := postgres.NewStore(pool, log)
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		log.Fatal("Migration failed", zap.Error(err))
	}
	log.Info("Database connection established")

	// Init Redis
	rdb, err := redisclient.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("Redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	deduper := util.NewDeduper(rdb, "dedup:activity", cfg.Worker.DedupeTTL, log)
	retries := util.NewRetryCounter(rdb, cfg.Worker.DedupeTTL)

	dlq, err := mq.NewPublisher(cfg.MQ.URL, cfg.MQ.Exchange)
	if err != nil {
		log.Fatal("Failed to init DLQ publisher", zap.Error(err))
	}
	defer dlq.Close()

	routingKeys := []string{
		contractmq.RoutingTaskCreated,
		contractmq.RoutingTaskUpdated,
		contractmq.RoutingTimerStarted,
		contractmq.RoutingTimerStopped,
	}

	var wg sync.WaitGroup
	for _, rk := range routingKeys {
		queue := "activity." + rk + ".q"
		log.Info("Initializing consumer", zap.String("queue", queue), zap.String("routing_key", rk))

		consumer, err := mq.NewConsumer(cfg.MQ.URL, cfg.MQ.Exchange, queue, rk, log)
		if err != nil {
			log.Fatal("Failed to init consumer", zap.String("routing_key", rk), zap.Error(err))
		}
		defer consumer.Close()

		consumer.WithDeadLetter(dlq, retries, cfg.Worker.MaxRetries)
		consumer.SetHandler(mqhandler.NewActivityHandler(rk, store, deduper, log).Handle)

		wg.Add(1)
		go func(rk string) {
			defer wg.Done()
			if err := consumer.StartConsuming(ctx); err != nil {
				log.Error("Consumer stopped", zap.String("routing_key", rk), zap.Error(err))
				stop()
			}
		}(rk)
	}

	log.Info("All consumers started, worker is ready to process messages")
	<-ctx.Done()

	log.Info("Shutting down worker...")
	wg.Wait()
	log.Info("Worker shutdown complete")
}
