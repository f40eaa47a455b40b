package db

import (
	"context"
	"fmt"

	"pennywise-server/src/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

func SaveItem(ctx context.Context, pool *pgxpool.Pool, item *models.Item) (*models.Item, error) {
	query := `
		INSERT INTO items (user_id, item_id, access_token, institution_id, institution_name, environment)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (item_id) DO UPDATE SET access_token = $3
		RETURNING id, user_id, item_id, access_token, institution_id, institution_name, environment, created_at
	`
	var saved models.Item
	err := pool.QueryRow(ctx, query,
		item.UserID, item.ItemID, item.AccessToken,
		item.InstitutionID, item.InstitutionName, item.Environment,
	).Scan(&saved.ID, &saved.UserID, &saved.ItemID, &saved.AccessToken,
		&saved.InstitutionID, &saved.InstitutionName, &saved.Environment, &saved.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func GetItemByID(ctx context.Context, pool *pgxpool.Pool, userID, itemRowID int64) (*models.Item, error) {
	query := `
		SELECT id, user_id, item_id, access_token, institution_id, institution_name, environment, created_at
		FROM items WHERE id = $1 AND user_id = $2
	`
	var item models.Item
	err := pool.QueryRow(ctx, query, itemRowID, userID).
		Scan(&item.ID, &item.UserID, &item.ItemID, &item.AccessToken,
			&item.InstitutionID, &item.InstitutionName, &item.Environment, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func GetItemByExternalID(ctx context.Context, pool *pgxpool.Pool, externalItemID string) (*models.Item, error) {
	query := `
		SELECT id, user_id, item_id, access_token, institution_id, institution_name, environment, created_at
		FROM items WHERE item_id = $1
	`
	var item models.Item
	err := pool.QueryRow(ctx, query, externalItemID).
		Scan(&item.ID, &item.UserID, &item.ItemID, &item.AccessToken,
			&item.InstitutionID, &item.InstitutionName, &item.Environment, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func GetItemsForUser(ctx context.Context, pool *pgxpool.Pool, userID int64) ([]models.Item, error) {
	query := `
		SELECT id, user_id, item_id, access_token, institution_id, institution_name, environment, created_at
		FROM items WHERE user_id = $1
		ORDER BY id
	`
	rows, err := pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		var item models.Item
		err := rows.Scan(&item.ID, &item.UserID, &item.ItemID, &item.AccessToken,
			&item.InstitutionID, &item.InstitutionName, &item.Environment, &item.CreatedAt)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListSyncUsers returns the distinct users owning at least one item,
// optionally narrowed to one provider environment.
func ListSyncUsers(ctx context.Context, pool *pgxpool.Pool, environment string) ([]int64, error) {
	query := `SELECT DISTINCT user_id FROM items`
	args := []interface{}{}
	if environment != "" {
		query += ` WHERE environment = $1`
		args = append(args, environment)
	}
	query += ` ORDER BY user_id`

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var userIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, id)
	}
	return userIDs, rows.Err()
}

// GetItemsForSync returns a user's items, optionally narrowed to one
// provider environment.
func GetItemsForSync(ctx context.Context, pool *pgxpool.Pool, userID int64, environment string) ([]models.Item, error) {
	query := `
		SELECT id, user_id, item_id, access_token, institution_id, institution_name, environment, created_at
		FROM items WHERE user_id = $1
	`
	args := []interface{}{userID}
	if environment != "" {
		query += ` AND environment = $2`
		args = append(args, environment)
	}
	query += ` ORDER BY id`

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		var item models.Item
		err := rows.Scan(&item.ID, &item.UserID, &item.ItemID, &item.AccessToken,
			&item.InstitutionID, &item.InstitutionName, &item.Environment, &item.CreatedAt)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// DeleteItem removes a connection; accounts, sync states, transactions
// and budget memberships under it go with it via FK cascade.
func DeleteItem(ctx context.Context, pool *pgxpool.Pool, userID, itemRowID int64) error {
	query := `DELETE FROM items WHERE id = $1 AND user_id = $2`
	cmd, err := pool.Exec(ctx, query, itemRowID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("item not found")
	}
	return nil
}
