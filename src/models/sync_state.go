package models

import "time"

type SyncStatus string

const (
	SyncStatusPending    SyncStatus = "pending"
	SyncStatusInProgress SyncStatus = "in_progress"
	SyncStatusComplete   SyncStatus = "complete"
	SyncStatusError      SyncStatus = "error"
)

// SyncState is the durable per-account sync position. The cursor is an
// opaque provider token; it only ever moves forward past fully-applied
// pages, so a re-run after a failure continues where the last good
// page left off.
type SyncState struct {
	AccountID          int64      `json:"account_id"`
	Cursor             string     `json:"cursor"`
	Status             SyncStatus `json:"status"`
	LastError          string     `json:"last_error"`
	TransactionsSynced int64      `json:"transactions_synced"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
