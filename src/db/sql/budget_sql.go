package db

import (
	"context"
	"fmt"

	"pennywise-server/src/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

func CreateBudget(ctx context.Context, pool *pgxpool.Pool, budget *models.Budget) (*models.Budget, error) {
	query := `
		INSERT INTO budgets (user_id, name, filter_prompt, limit_amount, window_type, window_days)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, name, filter_prompt, limit_amount, window_type, window_days, created_at, updated_at
	`
	var b models.Budget
	err := pool.QueryRow(ctx, query,
		budget.UserID, budget.Name, budget.FilterPrompt, budget.LimitAmount, budget.WindowType, budget.WindowDays).
		Scan(&b.ID, &b.UserID, &b.Name, &b.FilterPrompt, &b.LimitAmount, &b.WindowType, &b.WindowDays, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func GetBudgetByID(ctx context.Context, pool *pgxpool.Pool, userID, budgetID int64) (*models.Budget, error) {
	query := `
		SELECT id, user_id, name, filter_prompt, limit_amount, window_type, window_days, created_at, updated_at
		FROM budgets WHERE id = $1 AND user_id = $2
	`
	var b models.Budget
	err := pool.QueryRow(ctx, query, budgetID, userID).
		Scan(&b.ID, &b.UserID, &b.Name, &b.FilterPrompt, &b.LimitAmount, &b.WindowType, &b.WindowDays, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func GetAllBudgetsForUser(ctx context.Context, pool *pgxpool.Pool, userID int64) ([]models.Budget, error) {
	query := `
		SELECT id, user_id, name, filter_prompt, limit_amount, window_type, window_days, created_at, updated_at
		FROM budgets WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var budgets []models.Budget
	for rows.Next() {
		var b models.Budget
		err := rows.Scan(&b.ID, &b.UserID, &b.Name, &b.FilterPrompt, &b.LimitAmount, &b.WindowType, &b.WindowDays, &b.CreatedAt, &b.UpdatedAt)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

func UpdateBudget(ctx context.Context, pool *pgxpool.Pool, budget *models.Budget) (*models.Budget, error) {
	query := `
		UPDATE budgets
		SET name = $1, filter_prompt = $2, limit_amount = $3, window_type = $4, window_days = $5, updated_at = NOW()
		WHERE id = $6 AND user_id = $7
		RETURNING id, user_id, name, filter_prompt, limit_amount, window_type, window_days, created_at, updated_at
	`
	var b models.Budget
	err := pool.QueryRow(ctx, query,
		budget.Name, budget.FilterPrompt, budget.LimitAmount, budget.WindowType, budget.WindowDays, budget.ID, budget.UserID).
		Scan(&b.ID, &b.UserID, &b.Name, &b.FilterPrompt, &b.LimitAmount, &b.WindowType, &b.WindowDays, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// DeleteBudget removes the budget definition only; membership rows go
// via FK cascade, transactions themselves are untouched.
func DeleteBudget(ctx context.Context, pool *pgxpool.Pool, userID, budgetID int64) error {
	query := `DELETE FROM budgets WHERE id = $1 AND user_id = $2`
	cmd, err := pool.Exec(ctx, query, budgetID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("budget not found")
	}
	return nil
}
