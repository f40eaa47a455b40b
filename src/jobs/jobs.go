package jobs

import (
	"context"
	"time"
)

// SyncItemJob asks the worker to sync one connection and run the
// classification passes over whatever the sync produced.
type SyncItemJob struct {
	JobID     string    `json:"job_id"`
	UserID    int64     `json:"user_id"`
	ItemRowID int64     `json:"item_row_id"`
	// Reason records what triggered the job (webhook, manual, cron).
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Publisher enqueues background sync jobs. Webhook and handler code
// publish here instead of firing an unawaited goroutine, so failures
// end up in the worker's log rather than disappearing.
type Publisher interface {
	PublishSyncItem(ctx context.Context, job *SyncItemJob) error
	Close() error
}

// Handler processes one job; a returned error is logged by the worker.
type Handler func(ctx context.Context, job *SyncItemJob) error
