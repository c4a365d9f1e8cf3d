package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/mediqueue/internal/config"
	"github.com/hackgods/mediqueue/internal/db"
	"github.com/hackgods/mediqueue/internal/events"
	"github.com/hackgods/mediqueue/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("event-relay", cfg.Env, cfg.LogLevel)

	if cfg.StoreBackend != config.BackendPostgres {
		logger.Fatal().Msg("event-relay needs STORE_BACKEND=postgres")
	}
	if cfg.AMQPURL == "" {
		logger.Fatal().Err(errors.New("AMQP_URL is required")).Msg("config error")
	}

	logger.Info().
		Dur("interval", cfg.RelayInterval).
		Int("batch_size", cfg.RelayBatchSize).
		Str("exchange", cfg.AMQPExchange).
		Msg("event-relay starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		logger.Fatal().Err(err).Msg("amqp connection error")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing amqp publisher")
		}
	}()
	logger.Info().Msg("connected to AMQP broker")

	relay := events.NewRelay(events.NewPgOutbox(pgPool), publisher, cfg.RelayBatchSize, logger)
	relay.Run(rootCtx, cfg.RelayInterval)
}
