package main

import (
	"context"
	"errors"

	"ledger/internal/amqp"
	"ledger/internal/cli"
	applog "ledger/internal/log"
	"ledger/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentEvents)

	if !cfg.AMQPEnabled() {
		cli.Fatal(logger, "Cannot start event tail", errors.New("AMQP_URL is not set"))
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}
	defer amqpClient.Close()

	auditor := services.NewEventAuditor(logger)

	logger.Info("Starting ledger-events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	err = amqpClient.ConsumeTransactionEvents(ctx, auditor.Handle)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", applog.FieldError, err)
	}

	created, deleted := auditor.Counts()
	logger.Info("ledger-events stopped",
		"created_events", created,
		"deleted_events", deleted)
}
