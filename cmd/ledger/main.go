package main

import (
	"context"
	"errors"
	"net/http"

	"ledger/internal/amqp"
	"ledger/internal/cli"
	apphttp "ledger/internal/http"
	applog "ledger/internal/log"
	"ledger/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	ctx, stop := cli.SignalContext()
	defer stop()

	repo := cli.OpenStorage(ctx, logger, cfg)

	// Keep the publisher a nil interface when events are disabled.
	var publisher services.EventPublisher
	if cfg.AMQPEnabled() {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			repo.Close()
			cli.Fatal(logger, "Failed to initialize AMQP client", err)
		}
		publisher = amqpClient
		logger.Info("Transaction events enabled",
			"exchange", cfg.AMQPExchange,
			"queue", cfg.AMQPQueue)
	} else {
		logger.Info("Transaction events disabled - no AMQP_URL provided")
	}

	svc := services.NewTransactionService(repo, publisher)
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Failed to release resources", applog.FieldError, err)
		}
	}()

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting ledger server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			svc.Close()
			cli.Fatal(logger, "Server error", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", applog.FieldError, err)
		return
	}
	logger.Info("Server stopped gracefully")
}
