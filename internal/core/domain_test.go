package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransactionValidate(t *testing.T) {
	valid := NewTransaction{
		UserID:   "u1",
		Title:    "Coffee",
		Amount:   AmountFromCents(-450),
		Category: "Food",
	}

	tests := []struct {
		name   string
		mutate func(*NewTransaction)
		want   error
	}{
		{"valid", func(*NewTransaction) {}, nil},
		{"missing user", func(n *NewTransaction) { n.UserID = "" }, ErrMissingFields},
		{"missing title", func(n *NewTransaction) { n.Title = "" }, ErrMissingFields},
		{"missing category", func(n *NewTransaction) { n.Category = "" }, ErrMissingFields},
		{"zero amount", func(n *NewTransaction) { n.Amount = Amount{} }, ErrMissingFields},
		{"positive amount", func(n *NewTransaction) { n.Amount = AmountFromCents(1000) }, nil},
		{"sub-cent amount is present", func(n *NewTransaction) { n.Amount = Amount{Decimal: decimal.New(4, -3)} }, nil},
		{"amount too large", func(n *NewTransaction) { n.Amount = AmountFromCents(10_000_000_000) }, ErrAmountOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := valid
			tt.mutate(&n)
			err := n.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDate(t *testing.T) {
	d := NewDate(time.Date(2026, 10, 19, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, "2026-10-19", d.String())

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2026-10-19"`, string(b))

	parsed, err := ParseDate("2026-10-19T00:00:00Z")
	require.NoError(t, err)
	assert.True(t, parsed.Equal(d.Time))

	_, err = ParseDate("19/10/2026")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestTransactionJSON(t *testing.T) {
	tx := Transaction{
		ID:        1,
		UserID:    "u1",
		Title:     "Coffee",
		Amount:    AmountFromCents(-450),
		Category:  "Food",
		CreatedAt: NewDate(time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)),
	}
	b, err := json.Marshal(tx)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"id":1,"user_id":"u1","title":"Coffee","amount":-4.50,"category":"Food","created_at":"2026-10-19"}`,
		string(b))
}
