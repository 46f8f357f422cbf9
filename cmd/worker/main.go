package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"railticket/config"
	"railticket/internal/email"
	"railticket/internal/expiry"
	"railticket/internal/kafka"
	"railticket/internal/ledger"
	"railticket/internal/repository"
	"railticket/internal/service/compensation"
	"railticket/internal/sharding"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	seatLedger := ledger.NewRedisLedger(redisClient)
	routes := ledger.NewStaticRouteTable(cfg.RouteMap())

	shardRouter, err := sharding.NewRouter(cfg.Sharding.Count)
	if err != nil {
		log.Fatalf("shard router: %v", err)
	}
	orderRepo := repository.NewOrderRepository(pool, shardRouter)

	compensator := compensation.NewCompensator(orderRepo, routes, seatLedger, logger)

	// Notification fan-out from the order events topic.
	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.OrderEventsTopic)
	defer consumer.Close()
	sender := email.NewSender(logger)
	go func() {
		err := consumer.Consume(ctx, func(ctx context.Context, event kafka.OrderEvent) error {
			if err := sender.Send(ctx, event); err != nil {
				logger.Error("send notification", "order", event.OrderSerial, "error", err)
			}
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("consumer stopped", "error", err)
		}
	}()

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{Concurrency: 10},
	)
	mux := asynq.NewServeMux()
	mux.HandleFunc(expiry.TypeOrderExpiry, compensator.ProcessTask)

	go func() {
		<-ctx.Done()
		srv.Shutdown()
	}()

	if err := srv.Run(mux); err != nil {
		log.Fatalf("worker error: %v", err)
	}
}
