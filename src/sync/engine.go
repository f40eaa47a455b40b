package sync

import (
	"context"
	"fmt"

	"pennywise-server/src/models"

	"github.com/rs/zerolog"
)

// Result reports one connection's sync outcome. Synced carries the
// added/modified transactions so the caller can hand them to the
// categorization and budget-labeling passes.
type Result struct {
	AccountsTouched    int                  `json:"accounts_touched"`
	TransactionsSynced int                  `json:"transactions_synced"`
	Synced             []models.Transaction `json:"-"`
}

// Engine performs the incremental sync for one connection at a time.
// One engine instance is safe for concurrent use across connections;
// concurrent syncs of the same connection are excluded by contract
// (cron and webhook triggers run at most one per item).
type Engine struct {
	provider Provider
	store    Store
	log      zerolog.Logger
}

func NewEngine(provider Provider, store Store, log zerolog.Logger) *Engine {
	return &Engine{provider: provider, store: store, log: log}
}

// SyncItem pulls transaction deltas for one connection until the
// provider reports no more pages.
//
// The page is the unit of atomicity: the cursor and counters are
// persisted only after a page's deletes and upserts have committed, so
// a failure mid-sync leaves the cursor at the last fully-applied page
// and a re-run continues from there.
func (e *Engine) SyncItem(ctx context.Context, item models.Item) (Result, error) {
	log := e.log.With().
		Int64("user_id", item.UserID).
		Int64("item_id", item.ID).
		Str("external_item_id", item.ItemID).
		Logger()

	// Balance refresh is a side effect of every sync, independent of
	// cursor state.
	snapshots, err := e.provider.GetAccounts(ctx, item.AccessToken)
	if err != nil {
		return Result{}, fmt.Errorf("refresh accounts for item %d: %w", item.ID, err)
	}
	if err := e.store.UpsertAccounts(ctx, item.ID, snapshots); err != nil {
		return Result{}, fmt.Errorf("persist accounts for item %d: %w", item.ID, err)
	}

	accounts, err := e.store.ListAccounts(ctx, item.ID)
	if err != nil {
		return Result{}, fmt.Errorf("list accounts for item %d: %w", item.ID, err)
	}

	// Accounts under one connection share the provider cursor; their
	// sync state rows advance in lockstep, each keeping its own
	// cumulative count. An absent state means full historical backfill.
	cursor := ""
	counts := make(map[int64]int64, len(accounts))
	rowIDByExternal := make(map[string]int64, len(accounts))
	for _, acc := range accounts {
		rowIDByExternal[acc.AccountID] = acc.ID
		state, err := e.store.GetSyncState(ctx, acc.ID)
		if err != nil {
			return Result{}, fmt.Errorf("load sync state for account %d: %w", acc.ID, err)
		}
		if state != nil {
			counts[acc.ID] = state.TransactionsSynced
			if cursor == "" {
				cursor = state.Cursor
			}
		}
	}

	var (
		syncedIDs []string
		total     int
		pages     int
	)

	for {
		page, err := e.provider.SyncTransactions(ctx, item.AccessToken, cursor)
		if err != nil {
			e.markError(ctx, accounts, cursor, counts, err)
			return Result{}, fmt.Errorf("sync page %d for item %d: %w", pages+1, item.ID, err)
		}

		// Removed ids unknown locally are silent no-ops.
		if err := e.store.DeleteTransactions(ctx, page.RemovedIDs); err != nil {
			e.markError(ctx, accounts, cursor, counts, err)
			return Result{}, fmt.Errorf("apply removals for item %d: %w", item.ID, err)
		}

		deltas := make([]models.TransactionDelta, 0, len(page.Added)+len(page.Modified))
		deltas = append(deltas, page.Added...)
		deltas = append(deltas, page.Modified...)
		pageCounts, err := e.store.UpsertTransactions(ctx, item.ID, deltas)
		if err != nil {
			e.markError(ctx, accounts, cursor, counts, err)
			return Result{}, fmt.Errorf("apply deltas for item %d: %w", item.ID, err)
		}

		// The page is committed; only now does the cursor advance.
		cursor = page.NextCursor
		pages++
		for externalID, n := range pageCounts {
			rowID, ok := rowIDByExternal[externalID]
			if !ok {
				// The provider sent deltas for an account this item does
				// not track locally; there is no state row to credit.
				log.Warn().
					Str("external_account_id", externalID).
					Int("transactions", n).
					Msg("dropping deltas for unknown account")
				continue
			}
			counts[rowID] += int64(n)
			total += n
		}
		for _, d := range deltas {
			syncedIDs = append(syncedIDs, d.TransactionID)
		}

		status := models.SyncStatusInProgress
		if !page.HasMore {
			status = models.SyncStatusComplete
		}
		for _, acc := range accounts {
			err := e.store.UpsertSyncState(ctx, models.SyncState{
				AccountID:          acc.ID,
				Cursor:             cursor,
				Status:             status,
				TransactionsSynced: counts[acc.ID],
			})
			if err != nil {
				return Result{}, fmt.Errorf("persist sync state for account %d: %w", acc.ID, err)
			}
		}

		if !page.HasMore {
			break
		}
	}

	log.Info().
		Int("accounts", len(accounts)).
		Int("pages", pages).
		Int("transactions", total).
		Msg("item sync complete")

	synced, err := e.store.GetTransactionsByExternalIDs(ctx, syncedIDs)
	if err != nil {
		return Result{}, fmt.Errorf("load synced transactions for item %d: %w", item.ID, err)
	}

	return Result{
		AccountsTouched:    len(accounts),
		TransactionsSynced: total,
		Synced:             synced,
	}, nil
}

// markError records the failure against every account of the
// connection without advancing the cursor past the last good page.
func (e *Engine) markError(ctx context.Context, accounts []models.Account, cursor string, counts map[int64]int64, cause error) {
	for _, acc := range accounts {
		err := e.store.UpsertSyncState(ctx, models.SyncState{
			AccountID:          acc.ID,
			Cursor:             cursor,
			Status:             models.SyncStatusError,
			LastError:          cause.Error(),
			TransactionsSynced: counts[acc.ID],
		})
		if err != nil {
			e.log.Error().Err(err).Int64("account_id", acc.ID).Msg("failed to record sync error state")
		}
	}
}
