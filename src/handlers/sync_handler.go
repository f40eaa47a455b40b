package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"

	"pennywise-server/src/db"
	dbsql "pennywise-server/src/db/sql"
	"pennywise-server/src/jobs"
	"pennywise-server/src/models"
	syncpkg "pennywise-server/src/sync"
	"pennywise-server/src/util"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plaid/plaid-go/v41/plaid"
	"github.com/rs/zerolog"
)

// SyncItem runs the full sync-and-classify pipeline for one of the
// caller's connections and reports the outcome.
func SyncItem(runner *syncpkg.Runner, pool *pgxpool.Pool, cache db.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		itemIDStr := chi.URLParam(r, "item_id")
		itemRowID, err := strconv.ParseInt(itemIDStr, 10, 64)
		if err != nil {
			http.Error(w, "invalid item id", http.StatusBadRequest)
			return
		}

		item, err := dbsql.GetItemByID(r.Context(), pool, userID, itemRowID)
		if err != nil {
			http.Error(w, "item not found", http.StatusNotFound)
			log.Printf("ERROR: Failed to get item %d for user %d: %v", itemRowID, userID, err)
			return
		}

		result, err := runner.SyncAndClassify(r.Context(), *item)
		if err != nil {
			http.Error(w, "sync failed", http.StatusBadGateway)
			log.Printf("ERROR: Sync failed for user %d, item %d: %v", userID, itemRowID, err)
			return
		}

		cache.DelPrefix(TransactionCachePrefix(userID))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}

// SyncAllUsers is the operator batch-sync entry point over HTTP; the
// same run is reachable from the CLI via the -sync-all flag.
func SyncAllUsers(runner *syncpkg.Runner, store *syncpkg.PgStore, cache db.Cache, ignoredUserIDs map[int64]struct{}, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := syncpkg.Options{
			Environment:    r.URL.Query().Get("environment"),
			Parallel:       r.URL.Query().Get("parallel") == "true",
			FailOnError:    r.URL.Query().Get("fail_on_error") == "true",
			IgnoredUserIDs: ignoredUserIDs,
		}

		syncFn := func(ctx context.Context, item models.Item) (syncpkg.Result, error) {
			res, err := runner.SyncAndClassify(ctx, item)
			if err == nil {
				cache.DelPrefix(TransactionCachePrefix(item.UserID))
			}
			return res, err
		}

		summary, err := syncpkg.SyncAllUsers(r.Context(), store, syncFn, opts, logger)
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			log.Printf("ERROR: Batch sync finished with failures: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
		}
		json.NewEncoder(w).Encode(summary)
	}
}

// Webhook receives provider notifications. A SYNC_UPDATES_AVAILABLE
// event queues a background sync job rather than syncing inline, so
// the provider gets a fast ack and failures land in the worker log.
func Webhook(plaidClient *plaid.APIClient, pool *pgxpool.Pool, publisher jobs.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		headers := map[string]string{
			"Plaid-Verification": r.Header.Get("Plaid-Verification"),
		}
		ok, err := util.VerifyWebhook(r.Context(), plaidClient, body, headers)
		if err != nil || !ok {
			log.Printf("ERROR: Webhook verification failed: %v", err)
			http.Error(w, "verification failed", http.StatusUnauthorized)
			return
		}

		var payload struct {
			WebhookType string `json:"webhook_type"`
			WebhookCode string `json:"webhook_code"`
			ItemID      string `json:"item_id"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}

		if payload.WebhookType != "TRANSACTIONS" || payload.WebhookCode != "SYNC_UPDATES_AVAILABLE" {
			w.WriteHeader(http.StatusOK)
			return
		}

		item, err := dbsql.GetItemByExternalID(r.Context(), pool, payload.ItemID)
		if err != nil {
			log.Printf("ERROR: Webhook for unknown item %s: %v", payload.ItemID, err)
			http.Error(w, "unknown item", http.StatusNotFound)
			return
		}

		job := &jobs.SyncItemJob{
			UserID:    item.UserID,
			ItemRowID: item.ID,
			Reason:    "webhook",
		}
		if err := publisher.PublishSyncItem(r.Context(), job); err != nil {
			log.Printf("ERROR: Failed to queue sync job for item %d: %v", item.ID, err)
			http.Error(w, "failed to queue sync", http.StatusInternalServerError)
			return
		}

		log.Printf("INFO: Queued webhook sync job for item %d", item.ID)
		w.WriteHeader(http.StatusAccepted)
	}
}
