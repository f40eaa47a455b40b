package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"pennywise-server/src/db"
	dbsql "pennywise-server/src/db/sql"
	"pennywise-server/src/models"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const transactionCacheTTL = 5 * time.Minute

// TransactionCachePrefix keys a user's cached transaction queries so a
// sync can invalidate them all at once.
func TransactionCachePrefix(userID int64) string {
	return fmt.Sprintf("txns:%d:", userID)
}

type transactionsResponse struct {
	Transactions []models.Transaction `json:"transactions"`
	Message      string               `json:"message,omitempty"`
}

func GetTransactions(pool *pgxpool.Pool, cache db.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		filter, err := parseTransactionFilter(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		cacheKey := TransactionCachePrefix(userID) + r.URL.RawQuery
		if cached, ok := cache.Get(cacheKey); ok {
			if resp, ok := cached.(transactionsResponse); ok {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(resp)
				return
			}
		}

		transactions, err := dbsql.GetTransactionsFiltered(r.Context(), pool, userID, filter)
		if err != nil {
			http.Error(w, "Failed to retrieve transactions", http.StatusInternalServerError)
			log.Printf("ERROR: Failed to get transactions for user %d: %v", userID, err)
			return
		}

		resp := transactionsResponse{Transactions: transactions}
		if len(transactions) == 0 {
			resp.Transactions = []models.Transaction{}
			resp.Message = "No transactions yet - run a sync to pull them from your institution."
		}
		cache.Set(cacheKey, resp, transactionCacheTTL)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func parseTransactionFilter(r *http.Request) (models.TransactionFilter, error) {
	var filter models.TransactionFilter
	q := r.URL.Query()

	if v := q.Get("account_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid account_id")
		}
		filter.AccountID = id
	}
	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, fmt.Errorf("invalid start_date, expected YYYY-MM-DD")
		}
		filter.StartDate = t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, fmt.Errorf("invalid end_date, expected YYYY-MM-DD")
		}
		filter.EndDate = t
	}
	if v := q.Get("budget_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid budget_id")
		}
		filter.BudgetID = id
	}
	filter.CategoryContains = q.Get("category")
	filter.PendingOnly = q.Get("pending") == "true"
	return filter, nil
}

func UpdateTransactionCategory(pool *pgxpool.Pool, cache db.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		idStr := chi.URLParam(r, "transaction_id")
		transactionRowID, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			http.Error(w, "invalid transaction id", http.StatusBadRequest)
			return
		}

		var req struct {
			Category string `json:"category"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Category == "" {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		if err := dbsql.UpdateTransactionCategoryForUser(r.Context(), pool, userID, transactionRowID, req.Category); err != nil {
			http.Error(w, "transaction not found", http.StatusNotFound)
			log.Printf("ERROR: Failed to update category for transaction %d for user %d: %v", transactionRowID, userID, err)
			return
		}

		cache.DelPrefix(TransactionCachePrefix(userID))
		w.WriteHeader(http.StatusNoContent)
	}
}

func DeleteTransaction(pool *pgxpool.Pool, cache db.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		idStr := chi.URLParam(r, "transaction_id")
		transactionRowID, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			http.Error(w, "invalid transaction id", http.StatusBadRequest)
			return
		}

		if err := dbsql.DeleteTransaction(r.Context(), pool, userID, transactionRowID); err != nil {
			http.Error(w, "transaction not found", http.StatusNotFound)
			log.Printf("ERROR: Failed to delete transaction %d for user %d: %v", transactionRowID, userID, err)
			return
		}

		cache.DelPrefix(TransactionCachePrefix(userID))
		w.WriteHeader(http.StatusNoContent)
	}
}
