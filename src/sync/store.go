package sync

import (
	"context"

	db "pennywise-server/src/db/sql"
	"pennywise-server/src/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the storage boundary of the sync engine. Upserts are
// idempotent by external id, so at-least-once page re-delivery after a
// failure is safe.
type Store interface {
	UpsertAccounts(ctx context.Context, itemRowID int64, accounts []models.AccountSnapshot) error
	ListAccounts(ctx context.Context, itemRowID int64) ([]models.Account, error)

	GetSyncState(ctx context.Context, accountID int64) (*models.SyncState, error)
	UpsertSyncState(ctx context.Context, state models.SyncState) error

	UpsertTransactions(ctx context.Context, itemRowID int64, deltas []models.TransactionDelta) (map[string]int, error)
	DeleteTransactions(ctx context.Context, externalIDs []string) error
	GetTransactionsByExternalIDs(ctx context.Context, externalIDs []string) ([]models.Transaction, error)
}

// ItemLister enumerates users and their connections for batch syncs.
type ItemLister interface {
	ListSyncUsers(ctx context.Context, environment string) ([]int64, error)
	ListUserItems(ctx context.Context, userID int64, environment string) ([]models.Item, error)
}

// PgStore backs Store and ItemLister with the postgres query layer.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) UpsertAccounts(ctx context.Context, itemRowID int64, accounts []models.AccountSnapshot) error {
	return db.UpsertAccounts(ctx, s.pool, itemRowID, accounts)
}

func (s *PgStore) ListAccounts(ctx context.Context, itemRowID int64) ([]models.Account, error) {
	return db.GetAccountsForItem(ctx, s.pool, itemRowID)
}

func (s *PgStore) GetSyncState(ctx context.Context, accountID int64) (*models.SyncState, error) {
	return db.GetSyncState(ctx, s.pool, accountID)
}

func (s *PgStore) UpsertSyncState(ctx context.Context, state models.SyncState) error {
	return db.UpsertSyncState(ctx, s.pool, state)
}

func (s *PgStore) UpsertTransactions(ctx context.Context, itemRowID int64, deltas []models.TransactionDelta) (map[string]int, error) {
	return db.UpsertTransactions(ctx, s.pool, itemRowID, deltas)
}

func (s *PgStore) DeleteTransactions(ctx context.Context, externalIDs []string) error {
	return db.DeleteTransactionsByExternalIDs(ctx, s.pool, externalIDs)
}

func (s *PgStore) GetTransactionsByExternalIDs(ctx context.Context, externalIDs []string) ([]models.Transaction, error) {
	return db.GetTransactionsByExternalIDs(ctx, s.pool, externalIDs)
}

func (s *PgStore) ListSyncUsers(ctx context.Context, environment string) ([]int64, error) {
	return db.ListSyncUsers(ctx, s.pool, environment)
}

func (s *PgStore) ListUserItems(ctx context.Context, userID int64, environment string) ([]models.Item, error) {
	return db.GetItemsForSync(ctx, s.pool, userID, environment)
}
