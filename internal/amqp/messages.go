package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"ledger/internal/core"
)

// EventType names a change to the transactions table.
type EventType string

const (
	TransactionCreated EventType = "transaction.created"
	TransactionDeleted EventType = "transaction.deleted"
)

// TransactionEvent is published after a transaction is created or deleted.
// It carries the full row so consumers never need to read the database.
type TransactionEvent struct {
	Type        EventType        `json:"type"`
	Transaction core.Transaction `json:"transaction"`
	Timestamp   time.Time        `json:"timestamp"`
}

// NewTransactionEvent creates an event stamped with the current time
func NewTransactionEvent(eventType EventType, t core.Transaction) *TransactionEvent {
	return &TransactionEvent{
		Type:        eventType,
		Transaction: t,
		Timestamp:   time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes an event and rejects unknown types
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var e TransactionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	switch e.Type {
	case TransactionCreated, TransactionDeleted:
		return &e, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
}
