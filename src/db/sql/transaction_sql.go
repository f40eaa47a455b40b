package db

import (
	"context"
	"fmt"

	"pennywise-server/src/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UpsertTransactions applies added/modified deltas keyed by the
// provider's transaction id. Re-applying the same delta is a no-op:
// inserts conflict into updates that set the same values, and the
// assigned category is never touched here. Returns the number of rows
// applied per external account id.
func UpsertTransactions(ctx context.Context, pool *pgxpool.Pool, itemRowID int64, deltas []models.TransactionDelta) (map[string]int, error) {
	counts := make(map[string]int)
	for _, d := range deltas {
		query := `
			INSERT INTO transactions (account_id, transaction_id, amount, name, merchant_name, date, pending)
			SELECT a.id, $1, $2, $3, $4, $5, $6
			FROM accounts a
			WHERE a.item_id = $7 AND a.account_id = $8
			ON CONFLICT (transaction_id) DO UPDATE SET
				amount = $2,
				name = $3,
				merchant_name = $4,
				date = $5,
				pending = $6,
				updated_at = NOW()
		`
		cmd, err := pool.Exec(ctx, query,
			d.TransactionID,
			d.Amount,
			d.Name,
			d.MerchantName,
			d.Date,
			d.Pending,
			itemRowID,
			d.AccountID,
		)
		if err != nil {
			return counts, fmt.Errorf("upsert transaction %s: %w", d.TransactionID, err)
		}
		if cmd.RowsAffected() > 0 {
			counts[d.AccountID]++
		}
	}
	return counts, nil
}

// DeleteTransactionsByExternalIDs hard-deletes transactions the
// provider reports as removed. Unknown ids are silent no-ops.
func DeleteTransactionsByExternalIDs(ctx context.Context, pool *pgxpool.Pool, externalIDs []string) error {
	if len(externalIDs) == 0 {
		return nil
	}
	query := `DELETE FROM transactions WHERE transaction_id = ANY($1)`
	_, err := pool.Exec(ctx, query, externalIDs)
	return err
}

// GetTransactionsByExternalIDs loads full rows for a set of provider
// transaction ids, used to hand freshly-synced transactions to the
// classification passes.
func GetTransactionsByExternalIDs(ctx context.Context, pool *pgxpool.Pool, externalIDs []string) ([]models.Transaction, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT t.id, t.account_id, t.transaction_id, t.amount, t.name, t.merchant_name, t.date, t.category, t.pending, t.created_at, t.updated_at,
			COALESCE(array_agg(tb.budget_id) FILTER (WHERE tb.budget_id IS NOT NULL), '{}')
		FROM transactions t
		LEFT JOIN transaction_budgets tb ON tb.transaction_id = t.id
		WHERE t.transaction_id = ANY($1)
		GROUP BY t.id
		ORDER BY t.date DESC, t.id
	`
	return scanTransactions(ctx, pool, query, externalIDs)
}

func GetTransactionsForUser(ctx context.Context, pool *pgxpool.Pool, userID int64) ([]models.Transaction, error) {
	query := `
		SELECT t.id, t.account_id, t.transaction_id, t.amount, t.name, t.merchant_name, t.date, t.category, t.pending, t.created_at, t.updated_at,
			COALESCE(array_agg(tb.budget_id) FILTER (WHERE tb.budget_id IS NOT NULL), '{}')
		FROM transactions t
		JOIN accounts a ON t.account_id = a.id
		JOIN items i ON a.item_id = i.id
		LEFT JOIN transaction_budgets tb ON tb.transaction_id = t.id
		WHERE i.user_id = $1
		GROUP BY t.id
		ORDER BY t.date DESC, t.id
	`
	return scanTransactions(ctx, pool, query, userID)
}

// GetTransactionsFiltered is the query surface behind the transactions
// endpoint: date range, account, category substring, budget
// membership, and pending flag are all optional.
func GetTransactionsFiltered(ctx context.Context, pool *pgxpool.Pool, userID int64, filter models.TransactionFilter) ([]models.Transaction, error) {
	query := `
		SELECT t.id, t.account_id, t.transaction_id, t.amount, t.name, t.merchant_name, t.date, t.category, t.pending, t.created_at, t.updated_at,
			COALESCE(array_agg(tb.budget_id) FILTER (WHERE tb.budget_id IS NOT NULL), '{}')
		FROM transactions t
		JOIN accounts a ON t.account_id = a.id
		JOIN items i ON a.item_id = i.id
		LEFT JOIN transaction_budgets tb ON tb.transaction_id = t.id
		WHERE i.user_id = $1
	`
	args := []interface{}{userID}

	if filter.AccountID != 0 {
		args = append(args, filter.AccountID)
		query += fmt.Sprintf(" AND t.account_id = $%d", len(args))
	}
	if !filter.StartDate.IsZero() {
		args = append(args, filter.StartDate)
		query += fmt.Sprintf(" AND t.date >= $%d", len(args))
	}
	if !filter.EndDate.IsZero() {
		args = append(args, filter.EndDate)
		query += fmt.Sprintf(" AND t.date <= $%d", len(args))
	}
	if filter.CategoryContains != "" {
		args = append(args, "%"+filter.CategoryContains+"%")
		query += fmt.Sprintf(" AND t.category ILIKE $%d", len(args))
	}
	if filter.BudgetID != 0 {
		args = append(args, filter.BudgetID)
		query += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM transaction_budgets m WHERE m.transaction_id = t.id AND m.budget_id = $%d)", len(args))
	}
	if filter.PendingOnly {
		query += " AND t.pending"
	}

	query += " GROUP BY t.id ORDER BY t.date DESC, t.id"
	return scanTransactions(ctx, pool, query, args...)
}

func scanTransactions(ctx context.Context, pool *pgxpool.Pool, query string, args ...interface{}) ([]models.Transaction, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var t models.Transaction
		err := rows.Scan(&t.ID, &t.AccountID, &t.TransactionID, &t.Amount, &t.Name, &t.MerchantName,
			&t.Date, &t.Category, &t.Pending, &t.CreatedAt, &t.UpdatedAt, &t.BudgetIDs)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// UpdateTransactionCategory writes only the assigned category; core
// identity fields are never mutated by classification.
func UpdateTransactionCategory(ctx context.Context, pool *pgxpool.Pool, transactionRowID int64, category string) error {
	query := `UPDATE transactions SET category = $1, updated_at = NOW() WHERE id = $2`
	_, err := pool.Exec(ctx, query, category, transactionRowID)
	return err
}

// UpdateTransactionCategoryForUser is the handler-facing variant: the row must
// belong to one of the caller's items or nothing is updated.
func UpdateTransactionCategoryForUser(ctx context.Context, pool *pgxpool.Pool, userID, transactionRowID int64, category string) error {
	query := `
		UPDATE transactions t
		SET category = $1, updated_at = NOW()
		FROM accounts a, items i
		WHERE t.account_id = a.id AND a.item_id = i.id
		AND i.user_id = $2 AND t.id = $3
	`
	cmd, err := pool.Exec(ctx, query, category, userID, transactionRowID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found")
	}
	return nil
}

func DeleteTransaction(ctx context.Context, pool *pgxpool.Pool, userID, transactionRowID int64) error {
	query := `
		DELETE FROM transactions t
		USING accounts a, items i
		WHERE t.account_id = a.id AND a.item_id = i.id
		AND i.user_id = $1 AND t.id = $2
	`
	cmd, err := pool.Exec(ctx, query, userID, transactionRowID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found")
	}
	return nil
}
