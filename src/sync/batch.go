package sync

import (
	"context"
	"fmt"
	stdsync "sync"

	"pennywise-server/src/models"

	"github.com/rs/zerolog"
)

// SyncFunc runs one connection's sync end to end, including any
// classification passes the caller wires behind it.
type SyncFunc func(ctx context.Context, item models.Item) (Result, error)

// Options narrows and shapes a batch run. IgnoredUserIDs is the typed
// operator ignore-list of internal/demo users; it comes from config,
// never from process-wide environment state.
type Options struct {
	Environment    string
	Parallel       bool
	FailOnError    bool
	IgnoredUserIDs map[int64]struct{}
}

// Summary is the operator-visible outcome of one batch run.
type Summary struct {
	UsersProcessed     int `json:"users_processed"`
	ItemsSynced        int `json:"items_synced"`
	TransactionsSynced int `json:"transactions_synced"`
	FailedItems        int `json:"failed_items"`
}

// SyncAllUsers fans syncFn out across every user owning at least one
// connection. A single user's or connection's failure is logged with
// identifying context and counted, never propagated; the returned
// error is non-nil only when failures occurred and FailOnError is set.
func SyncAllUsers(ctx context.Context, lister ItemLister, syncFn SyncFunc, opts Options, log zerolog.Logger) (Summary, error) {
	userIDs, err := lister.ListSyncUsers(ctx, opts.Environment)
	if err != nil {
		return Summary{}, fmt.Errorf("list sync users: %w", err)
	}

	var (
		mu      stdsync.Mutex
		summary Summary
	)

	processUser := func(userID int64) {
		items, err := lister.ListUserItems(ctx, userID, opts.Environment)
		if err != nil {
			log.Error().Err(err).Int64("user_id", userID).Msg("failed to list user connections")
			mu.Lock()
			summary.FailedItems++
			mu.Unlock()
			return
		}

		for _, item := range items {
			res, err := syncFn(ctx, item)
			if err != nil {
				log.Error().Err(err).
					Int64("user_id", userID).
					Int64("item_id", item.ID).
					Str("institution", item.InstitutionName).
					Msg("connection sync failed")
				mu.Lock()
				summary.FailedItems++
				mu.Unlock()
				continue
			}
			mu.Lock()
			summary.ItemsSynced++
			summary.TransactionsSynced += res.TransactionsSynced
			mu.Unlock()
		}

		mu.Lock()
		summary.UsersProcessed++
		mu.Unlock()
	}

	if opts.Parallel {
		var wg stdsync.WaitGroup
		for _, userID := range userIDs {
			if _, skip := opts.IgnoredUserIDs[userID]; skip {
				continue
			}
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				processUser(id)
			}(userID)
		}
		wg.Wait()
	} else {
		for _, userID := range userIDs {
			if _, skip := opts.IgnoredUserIDs[userID]; skip {
				continue
			}
			processUser(userID)
		}
	}

	log.Info().
		Int("users_processed", summary.UsersProcessed).
		Int("items_synced", summary.ItemsSynced).
		Int("transactions_synced", summary.TransactionsSynced).
		Int("failed_items", summary.FailedItems).
		Msg("batch sync complete")

	if opts.FailOnError && summary.FailedItems > 0 {
		return summary, fmt.Errorf("batch sync: %d connection(s) failed", summary.FailedItems)
	}
	return summary, nil
}
