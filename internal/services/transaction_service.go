package services

import (
	"context"
	"fmt"

	"ledger/internal/amqp"
	"ledger/internal/core"
	applog "ledger/internal/log"
	"ledger/internal/storage"
)

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, event *amqp.TransactionEvent) error
}

// TransactionService orchestrates transaction operations across storage
// and the optional event publisher.
type TransactionService struct {
	repo      storage.Repository
	publisher EventPublisher
}

// NewTransactionService wires a repository and an optional publisher. A nil
// publisher disables events.
func NewTransactionService(repo storage.Repository, publisher EventPublisher) *TransactionService {
	return &TransactionService{
		repo:      repo,
		publisher: publisher,
	}
}

func (s *TransactionService) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	txs, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// CreateTransaction validates and stores a transaction, then publishes a
// created event.
func (s *TransactionService) CreateTransaction(ctx context.Context, n core.NewTransaction) (core.Transaction, error) {
	if err := n.Validate(); err != nil {
		return core.Transaction{}, err
	}

	t, err := s.repo.Create(ctx, n)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.publish(ctx, amqp.TransactionCreated, t)
	return t, nil
}

// DeleteTransaction removes a transaction by id and publishes a deleted
// event. The error wraps storage.ErrNotFound when no row matches.
func (s *TransactionService) DeleteTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	t, err := s.repo.Delete(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("delete transaction: %w", err)
	}

	s.publish(ctx, amqp.TransactionDeleted, t)
	return t, nil
}

func (s *TransactionService) Summary(ctx context.Context, userID string) (core.Summary, error) {
	summary, err := s.repo.Summary(ctx, userID)
	if err != nil {
		return core.Summary{}, fmt.Errorf("summarize transactions: %w", err)
	}
	return summary, nil
}

// Ping reports whether storage is reachable.
func (s *TransactionService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// publish never fails the caller: the row is already committed. It also
// outlives the caller's cancellation; the publish timeout still bounds it.
func (s *TransactionService) publish(ctx context.Context, eventType amqp.EventType, t core.Transaction) {
	if s.publisher == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := s.publisher.PublishTransactionEvent(ctx, amqp.NewTransactionEvent(eventType, t)); err != nil {
		applog.FromContext(ctx).WithComponent(applog.ComponentTransaction).ErrorContext(ctx, "Failed to publish transaction event",
			applog.FieldEventType, string(eventType),
			applog.FieldTransactionID, t.ID,
			applog.FieldError, err)
	}
}

// Close releases storage and the publisher if it is closable.
func (s *TransactionService) Close() error {
	var errs []error

	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if closer, ok := s.publisher.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close transaction service: %v", errs)
	}

	return nil
}
