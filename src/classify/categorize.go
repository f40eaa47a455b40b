package classify

import (
	"context"
	"fmt"
	"strings"

	db "pennywise-server/src/db/sql"
	"pennywise-server/src/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultCategories is the taxonomy the categorization pass assigns
// from.
var DefaultCategories = []string{
	"Income",
	"Transfer",
	"Rent & Utilities",
	"Groceries",
	"Food & Drink",
	"Transportation",
	"Travel",
	"Shopping",
	"Entertainment",
	"Health & Fitness",
	"Subscriptions",
	"Fees & Charges",
	"Other",
}

// CategoryInstruction builds the categorization task text from a
// taxonomy.
func CategoryInstruction(categories []string) string {
	var b strings.Builder
	b.WriteString("Assign each transaction the single best-fitting spending category.\n")
	b.WriteString("Use EXACTLY one of the following category names (case-sensitive):\n")
	for _, c := range categories {
		b.WriteString("- " + c + "\n")
	}
	b.WriteString("If none fits, use \"Other\".")
	return b.String()
}

// CategorizeTransactions runs the categorization pass over the given
// transactions and persists only the assigned category field.
func CategorizeTransactions(ctx context.Context, pool *pgxpool.Pool, pipeline *Pipeline, txns []models.Transaction, batchSize, concurrency int) error {
	if len(txns) == 0 {
		return nil
	}

	items := ItemsFromTransactions(txns)
	results, err := pipeline.Classify(ctx, items, CategoryInstruction(DefaultCategories), batchSize, concurrency)
	if err != nil {
		return fmt.Errorf("categorize %d transactions: %w", len(txns), err)
	}

	rowIDs := make(map[string]int64, len(txns))
	for _, t := range txns {
		rowIDs[t.TransactionID] = t.ID
	}

	for _, r := range results {
		if r.Category == "" {
			continue
		}
		if err := db.UpdateTransactionCategory(ctx, pool, rowIDs[r.ID], r.Category); err != nil {
			return fmt.Errorf("persist category for %s: %w", r.ID, err)
		}
	}
	return nil
}
