package services

import (
	"context"
	"fmt"
	"sync/atomic"

	"ledger/internal/amqp"
	applog "ledger/internal/log"
)

// EventAuditor writes every consumed transaction event to the log and
// keeps running totals per event type.
type EventAuditor struct {
	logger  *applog.Logger
	created atomic.Int64
	deleted atomic.Int64
}

func NewEventAuditor(logger *applog.Logger) *EventAuditor {
	return &EventAuditor{logger: logger}
}

// Handle matches the amqp consumer handler signature.
func (a *EventAuditor) Handle(ctx context.Context, event *amqp.TransactionEvent) error {
	switch event.Type {
	case amqp.TransactionCreated:
		a.created.Add(1)
	case amqp.TransactionDeleted:
		a.deleted.Add(1)
	default:
		return fmt.Errorf("unsupported event type %q", event.Type)
	}

	t := event.Transaction
	a.logger.InfoContext(ctx, "Transaction event",
		applog.NewFields().
			WithOperation(applog.OpConsume).
			WithTransaction(t.ID, t.UserID, t.Category, t.Amount.String()).
			ToSlice()...,
	)
	a.logger.DebugContext(ctx, "Transaction event detail",
		applog.FieldEventType, string(event.Type),
		"title", t.Title,
		"created_at", t.CreatedAt.String(),
		"published_at", event.Timestamp)
	return nil
}

// Counts returns the number of created and deleted events handled so far.
func (a *EventAuditor) Counts() (created, deleted int64) {
	return a.created.Load(), a.deleted.Load()
}
