package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tally/internal/ddd"
	httpapi "tally/internal/http"
	"tally/internal/invoice/handler"
	invoicemetrics "tally/internal/invoice/metrics"
	"tally/internal/invoice/reactions"
	"tally/internal/invoice/service"
	"tally/internal/invoice/store"
	"tally/internal/platform/config"
	"tally/internal/platform/httpserver"
	"tally/internal/platform/logger"
	"tally/internal/platform/postgres"
	"tally/internal/platform/scope"
	"tally/internal/platform/token"
	"tally/pkg/mq"
)

// main wires the HTTP server: database pool, event bus with its reactions,
// and the invoice routes. Business logic lives in the internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		logger.New("tally").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.PostgresDSN())
	if err != nil {
		log.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	connCfg := mq.ConnConfig{URL: cfg.AMQPURL(), Exchange: cfg.ExchangeName}
	runner := scope.NewRunner(db, connCfg, log)

	bus := ddd.NewBus()
	st := store.NewPostgres()
	m := invoicemetrics.New()
	svc := service.New(st, bus, log, service.WithMetrics(m))
	reactions.Register(bus, st, cfg.ServiceName, m, log)

	tokens := token.NewService(cfg.JWTSigningKey, cfg.ServiceName)
	router := httpapi.NewRouter(handler.New(svc, runner, tokens, log))
	srv := httpserver.New(cfg.Addr, router)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
	}()

	log.Info("starting http server", "addr", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
