package models

import "time"

type Transaction struct {
	ID            int64     `json:"id"`
	AccountID     int64     `json:"account_id"`
	TransactionID string    `json:"transaction_id"`
	Amount        float64   `json:"amount"`
	Name          string    `json:"name"`
	MerchantName  *string   `json:"merchant_name"`
	Date          time.Time `json:"date"`
	Category      *string   `json:"category"`
	Pending       bool      `json:"pending"`
	BudgetIDs     []int64   `json:"budget_ids"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TransactionFilter narrows the transaction query surface. Zero values
// mean "no filter" for that field.
type TransactionFilter struct {
	AccountID         int64
	StartDate         time.Time
	EndDate           time.Time
	CategoryContains  string
	BudgetID          int64
	PendingOnly       bool
}
