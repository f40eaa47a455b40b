package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ReplaceTransactionBudgets sets a transaction's budget membership to
// exactly the given set. An empty set is a valid terminal state and
// clears every membership row.
func ReplaceTransactionBudgets(ctx context.Context, pool *pgxpool.Pool, transactionRowID int64, budgetIDs []int64) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM transaction_budgets WHERE transaction_id = $1`, transactionRowID); err != nil {
		return err
	}
	for _, budgetID := range budgetIDs {
		_, err := tx.Exec(ctx,
			`INSERT INTO transaction_budgets (transaction_id, budget_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			transactionRowID, budgetID)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// GetBudgetMembership returns the set of transaction row ids currently
// belonging to one budget.
func GetBudgetMembership(ctx context.Context, pool *pgxpool.Pool, budgetID int64) (map[int64]struct{}, error) {
	rows, err := pool.Query(ctx, `SELECT transaction_id FROM transaction_budgets WHERE budget_id = $1`, budgetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		members[id] = struct{}{}
	}
	return members, rows.Err()
}

func AddBudgetMembership(ctx context.Context, pool *pgxpool.Pool, budgetID int64, transactionRowIDs []int64) error {
	for _, id := range transactionRowIDs {
		_, err := pool.Exec(ctx,
			`INSERT INTO transaction_budgets (transaction_id, budget_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			id, budgetID)
		if err != nil {
			return err
		}
	}
	return nil
}

func RemoveBudgetMembership(ctx context.Context, pool *pgxpool.Pool, budgetID int64, transactionRowIDs []int64) error {
	if len(transactionRowIDs) == 0 {
		return nil
	}
	_, err := pool.Exec(ctx,
		`DELETE FROM transaction_budgets WHERE budget_id = $1 AND transaction_id = ANY($2)`,
		budgetID, transactionRowIDs)
	return err
}
