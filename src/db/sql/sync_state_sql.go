package db

import (
	"context"
	"errors"

	"pennywise-server/src/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GetSyncState returns the sync position for one account, or nil when
// the account has never been synced (full historical backfill).
func GetSyncState(ctx context.Context, pool *pgxpool.Pool, accountID int64) (*models.SyncState, error) {
	query := `
		SELECT account_id, sync_cursor, status, last_error, transactions_synced, updated_at
		FROM sync_states WHERE account_id = $1
	`
	var s models.SyncState
	err := pool.QueryRow(ctx, query, accountID).
		Scan(&s.AccountID, &s.Cursor, &s.Status, &s.LastError, &s.TransactionsSynced, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertSyncState writes the account's sync position. Last-writer-wins
// is fine here: only one sync runs per account at a time by contract.
func UpsertSyncState(ctx context.Context, pool *pgxpool.Pool, state models.SyncState) error {
	query := `
		INSERT INTO sync_states (account_id, sync_cursor, status, last_error, transactions_synced, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (account_id) DO UPDATE SET
			sync_cursor = $2,
			status = $3,
			last_error = $4,
			transactions_synced = $5,
			updated_at = NOW()
	`
	_, err := pool.Exec(ctx, query,
		state.AccountID, state.Cursor, state.Status, state.LastError, state.TransactionsSynced)
	return err
}
