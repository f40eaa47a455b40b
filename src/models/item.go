package models

import "time"

// Item is one authenticated connection between a user and a financial
// institution. The access token is the opaque credential for all
// upstream calls on behalf of this connection.
type Item struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	ItemID          string    `json:"item_id"`
	AccessToken     string    `json:"-"`
	InstitutionID   string    `json:"institution_id"`
	InstitutionName string    `json:"institution_name"`
	Environment     string    `json:"environment"`
	CreatedAt       time.Time `json:"created_at"`
}
