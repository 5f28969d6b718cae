package core

// Summary aggregates a user's transactions. Income is the sum of positive
// amounts and Expenses the sum of negative amounts, so Balance always equals
// Income + Expenses.
type Summary struct {
	Balance  Amount `json:"balance"`
	Income   Amount `json:"income"`
	Expenses Amount `json:"expenses"`
}
