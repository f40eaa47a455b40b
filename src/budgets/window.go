package budgets

import (
	"time"

	"pennywise-server/src/models"

	"github.com/shopspring/decimal"
)

// WindowStart returns the start of the budget's current window: the
// first of the month for calendar budgets, now minus WindowDays for
// rolling ones.
func WindowStart(b models.Budget, now time.Time) time.Time {
	switch b.WindowType {
	case models.WindowCalendar:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	default:
		days := b.WindowDays
		if days <= 0 {
			days = 30
		}
		return now.AddDate(0, 0, -days)
	}
}

// Summarize computes the budget's spend position over its current
// window. The provider reports outflows as positive amounts; inflows
// are excluded from spend.
func Summarize(b models.Budget, txns []models.Transaction, now time.Time) models.BudgetSummary {
	start := WindowStart(b, now)
	spent := decimal.Zero
	for _, t := range txns {
		if t.Date.Before(start) || t.Amount <= 0 {
			continue
		}
		spent = spent.Add(decimal.NewFromFloat(t.Amount))
	}
	return models.BudgetSummary{
		BudgetID:    b.ID,
		Name:        b.Name,
		WindowStart: start,
		Limit:       b.LimitAmount,
		Spent:       spent,
		Remaining:   b.LimitAmount.Sub(spent),
	}
}
