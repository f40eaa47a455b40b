package db

import (
	"context"

	"pennywise-server/src/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UpsertAccounts refreshes account metadata and balances from a
// provider snapshot. Runs at the start of every sync, independent of
// cursor state.
func UpsertAccounts(ctx context.Context, pool *pgxpool.Pool, itemRowID int64, accounts []models.AccountSnapshot) error {
	for _, acc := range accounts {
		query := `
			INSERT INTO accounts (item_id, account_id, name, official_name, mask, type, subtype, current_balance, available_balance, last_synced_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
			ON CONFLICT (account_id) DO UPDATE SET
				name = $3,
				official_name = $4,
				current_balance = $8,
				available_balance = $9,
				last_synced_at = NOW()
		`
		_, err := pool.Exec(ctx, query,
			itemRowID,
			acc.AccountID,
			acc.Name,
			acc.OfficialName,
			acc.Mask,
			acc.Type,
			acc.Subtype,
			acc.CurrentBalance,
			acc.AvailableBalance,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func GetAccountsForItem(ctx context.Context, pool *pgxpool.Pool, itemRowID int64) ([]models.Account, error) {
	query := `
		SELECT id, item_id, account_id, name, official_name, mask, type, subtype, current_balance, available_balance, last_synced_at, created_at
		FROM accounts WHERE item_id = $1
		ORDER BY id
	`
	rows, err := pool.Query(ctx, query, itemRowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		err := rows.Scan(&a.ID, &a.ItemID, &a.AccountID, &a.Name, &a.OfficialName, &a.Mask,
			&a.Type, &a.Subtype, &a.CurrentBalance, &a.AvailableBalance, &a.LastSyncedAt, &a.CreatedAt)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func GetAccountsForUser(ctx context.Context, pool *pgxpool.Pool, userID, itemRowID int64) ([]models.Account, error) {
	query := `
		SELECT a.id, a.item_id, a.account_id, a.name, a.official_name, a.mask, a.type, a.subtype, a.current_balance, a.available_balance, a.last_synced_at, a.created_at
		FROM accounts a
		JOIN items i ON a.item_id = i.id
		WHERE i.user_id = $1 AND i.id = $2
		ORDER BY a.id
	`
	rows, err := pool.Query(ctx, query, userID, itemRowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		err := rows.Scan(&a.ID, &a.ItemID, &a.AccountID, &a.Name, &a.OfficialName, &a.Mask,
			&a.Type, &a.Subtype, &a.CurrentBalance, &a.AvailableBalance, &a.LastSyncedAt, &a.CreatedAt)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
