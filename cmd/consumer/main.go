package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"tally/internal/ddd"
	"tally/internal/invoice/consumer"
	invoicemetrics "tally/internal/invoice/metrics"
	"tally/internal/invoice/reactions"
	"tally/internal/invoice/service"
	"tally/internal/invoice/store"
	"tally/internal/platform/config"
	"tally/internal/platform/idempotency"
	"tally/internal/platform/logger"
	"tally/internal/platform/postgres"
	"tally/internal/platform/redis"
	"tally/internal/platform/scope"
	"tally/pkg/mq"
)

// main runs the consumer supervisor: one supervised worker per exchange,
// sharing a restart budget. A worker that cannot reach the broker at all
// stops the whole process so the orchestrator can restart it.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		logger.New("tally").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.ServiceName + "-consumer")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.PostgresDSN())
	if err != nil {
		log.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	var guard *idempotency.Guard
	if redisClient != nil {
		defer redisClient.Close()
		guard = idempotency.New(redisClient, cfg.IdempotencyTTL)
	}

	connCfg := mq.ConnConfig{URL: cfg.AMQPURL(), Exchange: cfg.ExchangeName}
	runner := scope.NewRunner(db, connCfg, log)

	bus := ddd.NewBus()
	st := store.NewPostgres()
	m := invoicemetrics.New()
	svc := service.New(st, bus, log, service.WithMetrics(m))
	reactions.Register(bus, st, cfg.ServiceName, m, log)

	router := consumer.NewRouter(svc, runner, guard, cfg.ConsumerName, log)

	consumeCfg := mq.ConsumeConfig{
		ConnConfig: connCfg,
		Queue:      cfg.QueueName(cfg.ExchangeName),
		BindingKey: cfg.ServiceRoutingKey(),
	}
	worker := mq.Worker{
		Name: cfg.QueueName(cfg.ExchangeName),
		Run: func(ctx context.Context) error {
			return mq.NewConsumer(consumeCfg, log).Consume(ctx, router.Handle)
		},
	}

	sup := mq.NewSupervisor(log, cfg.RestartBudget, worker)
	if err := sup.Run(ctx); err != nil {
		log.Error("supervisor stopped", "error", err)
		os.Exit(1)
	}
	log.Info("consumer stopped")
}
