package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"railticket/config"
	"railticket/internal/bootstrap"
	"railticket/internal/domain"
	"railticket/internal/expiry"
	"railticket/internal/idgen"
	"railticket/internal/kafka"
	"railticket/internal/ledger"
	"railticket/internal/repository"
	"railticket/internal/service/allocation"
	"railticket/internal/service/booking"
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

	ids, err := idgen.New(cfg.IDGen.NodeID)
	if err != nil {
		log.Fatalf("id generator: %v", err)
	}

	allocator := allocation.NewAllocator(seatLedger, seatLedger, routes)
	registry := allocation.NewRegistry()
	for _, class := range []domain.SeatClass{domain.SeatClassBusiness, domain.SeatClassFirst, domain.SeatClassSecond} {
		registry.Register(domain.VehicleHighSpeed, class, allocator)
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()
	scheduler := expiry.NewScheduler(asynqClient, time.Duration(cfg.Booking.PayTTLMinutes)*time.Minute)

	ticketService := booking.NewTicketService(
		ids,
		registry,
		orderRepo,
		routes,
		seatLedger,
		producer,
		scheduler,
		cfg.Kafka.OrderEventsTopic,
		booking.WithLogger(logger),
	)

	if err := bootstrap.Run(ctx, cfg, ticketService); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
