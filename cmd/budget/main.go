package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"budget/internal/amqp"
	"budget/internal/backend"
	"budget/internal/cache"
	"budget/internal/cli"
	"budget/internal/core"
	apphttp "budget/internal/http"
	"budget/internal/log"
	"budget/internal/services"
	"budget/internal/session"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)
	cli.MustValidate(cfg, logger)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	if err := backend.Migrate(backendConfig); err != nil {
		cli.Fatal(logger, "Failed to run migrations", err)
	}
	result, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendConfig)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err)
	}

	// Month-synced events are optional; without AMQP the export pipeline is idle.
	var (
		publisher  session.Publisher
		amqpClient *amqp.Client
	)
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			cli.Fatal(logger, "Failed to initialize AMQP client", err)
		}
		publisher = amqpClient
		logger.Info("AMQP publisher enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - month-synced events will not be published")
	}

	totals := cache.NewLRUCache[core.Totals](1024, 30*time.Minute)
	janitor := cache.NewJanitor(logger)
	janitor.Register(totals)
	janitor.Start(10 * time.Minute)

	manager := services.NewManager(result.Syncer, cli.SessionConfig(cfg, publisher, totals, logger), logger)

	retry := services.NewRetryProcessor(manager, services.RetryProcessorConfig{Interval: cfg.RetryInterval}, logger)
	if err := retry.Start(context.Background()); err != nil {
		cli.Fatal(logger, "Failed to start retry processor", err)
	}

	srv := apphttp.NewServer(":"+cfg.Port, manager, apphttp.Options{
		Locale: core.LocaleFor(cfg.Locale),
		Logger: logger,
		Ready: func(context.Context) error {
			if !retry.IsRunning() {
				return errors.New("retry processor stopped")
			}
			return nil
		},
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := retry.Stop(ctx); err != nil {
			logger.Warn("Retry processor stop error", log.FieldError, err)
		}
		n := manager.CloseAll()
		logger.Info("Sessions flushed", log.FieldOperation, log.OpShutdown, "sessions", n)
		janitor.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if err := result.Close(); err != nil {
			logger.Warn("Backend close error", log.FieldError, err)
		}
	})

	logger.Info("Starting budget server",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(logger, "Server error", err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
