package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Budget window kinds. A rolling budget covers the trailing WindowDays
// days; a calendar budget resets on the first of each month.
const (
	WindowRolling  = "rolling"
	WindowCalendar = "calendar_month"
)

type Budget struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	Name         string          `json:"name"`
	FilterPrompt string          `json:"filter_prompt"`
	LimitAmount  decimal.Decimal `json:"limit_amount"`
	WindowType   string          `json:"window_type"`
	WindowDays   int             `json:"window_days"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// BudgetSummary is the computed spend position of one budget over its
// current window.
type BudgetSummary struct {
	BudgetID    int64           `json:"budget_id"`
	Name        string          `json:"name"`
	WindowStart time.Time       `json:"window_start"`
	Limit       decimal.Decimal `json:"limit"`
	Spent       decimal.Decimal `json:"spent"`
	Remaining   decimal.Decimal `json:"remaining"`
}
