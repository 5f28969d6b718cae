package amqp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
)

type fakeAck struct {
	acked    bool
	nacked   bool
	requeued bool
}

func (f *fakeAck) Ack(bool) error { f.acked = true; return nil }
func (f *fakeAck) Nack(_ bool, requeue bool) error {
	f.nacked = true
	f.requeued = requeue
	return nil
}

func sampleTransaction() core.Transaction {
	return core.Transaction{
		ID:        3,
		UserID:    "u1",
		Title:     "Coffee",
		Amount:    core.AmountFromCents(-450),
		Category:  "Food",
		CreatedAt: core.NewDate(time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)),
	}
}

func TestTransactionEventJSON(t *testing.T) {
	event := NewTransactionEvent(TransactionCreated, sampleTransaction())
	body, err := event.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(body), `"type":"transaction.created"`)
	assert.Contains(t, string(body), `"amount":-4.50`)

	decoded, err := TransactionEventFromJSON(body)
	require.NoError(t, err)
	assert.Equal(t, TransactionCreated, decoded.Type)
	assert.Equal(t, int64(3), decoded.Transaction.ID)
	assert.Equal(t, "-4.50", decoded.Transaction.Amount.String())
	assert.Equal(t, "2026-10-19", decoded.Transaction.CreatedAt.String())
}

func TestTransactionEventFromJSONRejectsUnknownType(t *testing.T) {
	_, err := TransactionEventFromJSON([]byte(`{"type":"transaction.updated"}`))
	assert.Error(t, err)

	_, err = TransactionEventFromJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestSettle(t *testing.T) {
	body, err := NewTransactionEvent(TransactionDeleted, sampleTransaction()).ToJSON()
	require.NoError(t, err)

	t.Run("handled events are acked", func(t *testing.T) {
		ack := &fakeAck{}
		var got *TransactionEvent
		settle(context.Background(), ack, body, func(_ context.Context, e *TransactionEvent) error {
			got = e
			return nil
		})
		assert.True(t, ack.acked)
		assert.False(t, ack.nacked)
		require.NotNil(t, got)
		assert.Equal(t, TransactionDeleted, got.Type)
	})

	t.Run("handler failure requeues", func(t *testing.T) {
		ack := &fakeAck{}
		settle(context.Background(), ack, body, func(context.Context, *TransactionEvent) error {
			return errors.New("boom")
		})
		assert.True(t, ack.nacked)
		assert.True(t, ack.requeued)
	})

	t.Run("undecodable message is dropped", func(t *testing.T) {
		ack := &fakeAck{}
		called := false
		settle(context.Background(), ack, []byte(`{`), func(context.Context, *TransactionEvent) error {
			called = true
			return nil
		})
		assert.False(t, called)
		assert.True(t, ack.nacked)
		assert.False(t, ack.requeued)
	})
}
