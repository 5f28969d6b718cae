package core

import (
	"errors"
	"time"
)

// DateLayout is the wire and storage format of Transaction.CreatedAt.
const DateLayout = "2006-01-02"

type (
	// Date is a calendar day without time of day.
	Date struct {
		time.Time
	}

	// Transaction is one ledger entry belonging to a user.
	Transaction struct {
		ID        int64  `json:"id"`
		UserID    string `json:"user_id"`
		Title     string `json:"title"`
		Amount    Amount `json:"amount"`
		Category  string `json:"category"`
		CreatedAt Date   `json:"created_at"`
	}

	// NewTransaction holds the client-supplied fields of a transaction.
	// ID and CreatedAt are assigned by storage.
	NewTransaction struct {
		UserID   string
		Title    string
		Amount   Amount
		Category string
	}
)

var (
	ErrMissingFields    = errors.New("all fields are required")
	ErrAmountOutOfRange = errors.New("amount out of range")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
)

// Validate performs the presence check on every field. An amount of zero
// counts as missing.
func (t NewTransaction) Validate() error {
	if t.UserID == "" || t.Title == "" || t.Category == "" || t.Amount.IsZero() {
		return ErrMissingFields
	}
	if !t.Amount.InRange() {
		return ErrAmountOutOfRange
	}
	return nil
}

// NewDate truncates t to its calendar day.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current UTC calendar day.
func Today() Date {
	return NewDate(time.Now().UTC())
}

// ParseDate parses a YYYY-MM-DD string. Longer timestamp strings are
// accepted and truncated to their date part.
func ParseDate(s string) (Date, error) {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON renders the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts "YYYY-MM-DD".
func (d *Date) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return ErrInvalidDate
	}
	parsed, err := ParseDate(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
