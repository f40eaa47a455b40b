package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"pennywise-server/src/budgets"
	db "pennywise-server/src/db/sql"
	"pennywise-server/src/models"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type budgetRequest struct {
	Name         string          `json:"name"`
	FilterPrompt string          `json:"filter_prompt"`
	LimitAmount  decimal.Decimal `json:"limit_amount"`
	WindowType   string          `json:"window_type"`
	WindowDays   int             `json:"window_days"`
}

func (req *budgetRequest) validate() string {
	if req.Name == "" {
		return "name is required"
	}
	if req.FilterPrompt == "" {
		return "filter_prompt is required"
	}
	if req.LimitAmount.LessThanOrEqual(decimal.Zero) {
		return "limit_amount must be positive"
	}
	switch req.WindowType {
	case models.WindowCalendar:
	case models.WindowRolling:
		if req.WindowDays <= 0 {
			return "window_days must be positive for rolling budgets"
		}
	default:
		return "window_type must be rolling or calendar_month"
	}
	return ""
}

func CreateBudget(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		var req budgetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("ERROR: Failed to decode create budget request body for user %d: %v", userID, err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if msg := req.validate(); msg != "" {
			http.Error(w, msg, http.StatusBadRequest)
			return
		}

		budget := &models.Budget{
			UserID:       userID,
			Name:         req.Name,
			FilterPrompt: req.FilterPrompt,
			LimitAmount:  req.LimitAmount,
			WindowType:   req.WindowType,
			WindowDays:   req.WindowDays,
		}
		created, err := db.CreateBudget(r.Context(), pool, budget)
		if err != nil {
			log.Printf("ERROR: Failed to create budget for user %d: %v", userID, err)
			http.Error(w, "failed to create budget", http.StatusInternalServerError)
			return
		}

		log.Printf("INFO: Created budget id %d for user %d, name %s", created.ID, userID, created.Name)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(created)
	}
}

func GetBudgetByID(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		budgetID, err := budgetIDParam(r)
		if err != nil {
			http.Error(w, "invalid budget id", http.StatusBadRequest)
			return
		}

		budget, err := db.GetBudgetByID(r.Context(), pool, userID, budgetID)
		if err != nil {
			log.Printf("ERROR: Budget id %d not found for user %d: %v", budgetID, userID, err)
			http.Error(w, "budget not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(budget)
	}
}

func GetAllBudgetsForUser(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		list, err := db.GetAllBudgetsForUser(r.Context(), pool, userID)
		if err != nil {
			log.Printf("ERROR: Failed to get budgets for user %d: %v", userID, err)
			http.Error(w, "failed to retrieve budgets", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(list)
	}
}

func UpdateBudget(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		budgetID, err := budgetIDParam(r)
		if err != nil {
			http.Error(w, "invalid budget id", http.StatusBadRequest)
			return
		}

		var req budgetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if msg := req.validate(); msg != "" {
			http.Error(w, msg, http.StatusBadRequest)
			return
		}

		budget := &models.Budget{
			ID:           budgetID,
			UserID:       userID,
			Name:         req.Name,
			FilterPrompt: req.FilterPrompt,
			LimitAmount:  req.LimitAmount,
			WindowType:   req.WindowType,
			WindowDays:   req.WindowDays,
		}
		updated, err := db.UpdateBudget(r.Context(), pool, budget)
		if err != nil {
			log.Printf("ERROR: Failed to update budget %d for user %d: %v", budgetID, userID, err)
			http.Error(w, "budget not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(updated)
	}
}

func DeleteBudget(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		budgetID, err := budgetIDParam(r)
		if err != nil {
			http.Error(w, "invalid budget id", http.StatusBadRequest)
			return
		}

		if err := db.DeleteBudget(r.Context(), pool, userID, budgetID); err != nil {
			log.Printf("ERROR: Failed to delete budget %d for user %d: %v", budgetID, userID, err)
			http.Error(w, "budget not found", http.StatusNotFound)
			return
		}

		log.Printf("INFO: Deleted budget %d for user %d", budgetID, userID)
		w.WriteHeader(http.StatusNoContent)
	}
}

// GetBudgetSummary reports spend against the budget's current window.
func GetBudgetSummary(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		budgetID, err := budgetIDParam(r)
		if err != nil {
			http.Error(w, "invalid budget id", http.StatusBadRequest)
			return
		}

		budget, err := db.GetBudgetByID(r.Context(), pool, userID, budgetID)
		if err != nil {
			http.Error(w, "budget not found", http.StatusNotFound)
			return
		}

		now := time.Now()
		txns, err := db.GetTransactionsFiltered(r.Context(), pool, userID, models.TransactionFilter{
			BudgetID:  budgetID,
			StartDate: budgets.WindowStart(*budget, now),
		})
		if err != nil {
			log.Printf("ERROR: Failed to load window transactions for budget %d: %v", budgetID, err)
			http.Error(w, "failed to compute summary", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(budgets.Summarize(*budget, txns, now))
	}
}

// LabelBudget re-runs classification of all the user's transactions
// against one budget, writing only changed memberships.
func LabelBudget(labeler *budgets.Labeler, pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		budgetID, err := budgetIDParam(r)
		if err != nil {
			http.Error(w, "invalid budget id", http.StatusBadRequest)
			return
		}

		budget, err := db.GetBudgetByID(r.Context(), pool, userID, budgetID)
		if err != nil {
			http.Error(w, "budget not found", http.StatusNotFound)
			return
		}

		matched, err := labeler.LabelSingleBudget(r.Context(), userID, *budget)
		if err != nil {
			log.Printf("ERROR: Failed to label budget %d for user %d: %v", budgetID, userID, err)
			http.Error(w, "labeling failed", http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"matched": matched})
	}
}

// LabelAllBudgets re-labels every transaction of the user against the
// full budget set.
func LabelAllBudgets(labeler *budgets.Labeler, pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		txns, err := db.GetTransactionsForUser(r.Context(), pool, userID)
		if err != nil {
			http.Error(w, "failed to load transactions", http.StatusInternalServerError)
			log.Printf("ERROR: Failed to load transactions for user %d: %v", userID, err)
			return
		}

		list, err := db.GetAllBudgetsForUser(r.Context(), pool, userID)
		if err != nil {
			http.Error(w, "failed to load budgets", http.StatusInternalServerError)
			log.Printf("ERROR: Failed to load budgets for user %d: %v", userID, err)
			return
		}

		if err := labeler.LabelTransactions(r.Context(), txns, list); err != nil {
			http.Error(w, "labeling failed", http.StatusBadGateway)
			log.Printf("ERROR: Failed to label transactions for user %d: %v", userID, err)
			return
		}

		log.Printf("INFO: Labeled %d transactions against %d budgets for user %d", len(txns), len(list), userID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func budgetIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "budget_id"), 10, 64)
}
