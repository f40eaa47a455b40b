package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Queue is an in-memory, channel-backed job queue. It is safe for
// concurrent use and suitable for a single-instance deployment; the
// Publisher interface leaves room for an external queue later.
type Queue struct {
	jobChan   chan *SyncItemJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	log       zerolog.Logger
}

// NewQueue creates a queue. bufferSize bounds how many jobs can wait
// before PublishSyncItem blocks.
func NewQueue(bufferSize int, log zerolog.Logger) *Queue {
	return &Queue{
		jobChan:   make(chan *SyncItemJob, bufferSize),
		closeChan: make(chan struct{}),
		log:       log,
	}
}

func (q *Queue) PublishSyncItem(ctx context.Context, job *SyncItemJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	select {
	case q.jobChan <- job:
		q.log.Debug().
			Str("job_id", job.JobID).
			Int64("item_row_id", job.ItemRowID).
			Str("reason", job.Reason).
			Msg("sync job queued")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start launches the worker loop. Job failures are logged with full
// identifying context and never crash the worker. The worker exits
// only once jobChan is closed and drained: every accepted job is
// handled before shutdown completes.
func (q *Queue) Start(ctx context.Context, handler Handler) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case job, ok := <-q.jobChan:
				if !ok {
					return
				}
				start := time.Now()
				if err := handler(ctx, job); err != nil {
					q.log.Error().Err(err).
						Str("job_id", job.JobID).
						Int64("user_id", job.UserID).
						Int64("item_row_id", job.ItemRowID).
						Str("reason", job.Reason).
						Msg("sync job failed")
					continue
				}
				q.log.Info().
					Str("job_id", job.JobID).
					Int64("item_row_id", job.ItemRowID).
					Dur("elapsed", time.Since(start)).
					Msg("sync job complete")
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close stops accepting jobs and waits for the worker to drain every
// job accepted before the close. Publishers hold the read lock across
// their send, so no send can race the channel close.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	close(q.jobChan)
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}
