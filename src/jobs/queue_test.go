package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestQueueDeliversJobs(t *testing.T) {
	q := NewQueue(4, zerolog.Nop())
	defer q.Close()

	handled := make(chan *SyncItemJob, 1)
	q.Start(context.Background(), func(_ context.Context, job *SyncItemJob) error {
		handled <- job
		return nil
	})

	job := &SyncItemJob{UserID: 1, ItemRowID: 7, Reason: "webhook"}
	if err := q.PublishSyncItem(context.Background(), job); err != nil {
		t.Fatalf("PublishSyncItem failed: %v", err)
	}

	select {
	case got := <-handled:
		if got.ItemRowID != 7 {
			t.Errorf("got item %d, want 7", got.ItemRowID)
		}
		if got.JobID == "" {
			t.Error("job id was not assigned")
		}
		if got.CreatedAt.IsZero() {
			t.Error("created_at was not assigned")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job was never handled")
	}
}

func TestQueueHandlerFailureDoesNotStopWorker(t *testing.T) {
	q := NewQueue(4, zerolog.Nop())
	defer q.Close()

	handled := make(chan string, 2)
	q.Start(context.Background(), func(_ context.Context, job *SyncItemJob) error {
		handled <- job.Reason
		if job.Reason == "bad" {
			return errors.New("boom")
		}
		return nil
	})

	if err := q.PublishSyncItem(context.Background(), &SyncItemJob{Reason: "bad"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if err := q.PublishSyncItem(context.Background(), &SyncItemJob{Reason: "good"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	for _, want := range []string{"bad", "good"} {
		select {
		case got := <-handled:
			if got != want {
				t.Errorf("got job %q, want %q", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("job %q was never handled", want)
		}
	}
}

func TestQueueCloseDrainsAcceptedJobs(t *testing.T) {
	const jobs = 100
	q := NewQueue(jobs, zerolog.Nop())

	var handled int32
	q.Start(context.Background(), func(_ context.Context, _ *SyncItemJob) error {
		atomic.AddInt32(&handled, 1)
		return nil
	})

	for i := 0; i < jobs; i++ {
		if err := q.PublishSyncItem(context.Background(), &SyncItemJob{ItemRowID: int64(i)}); err != nil {
			t.Fatalf("publish %d failed: %v", i, err)
		}
	}

	// Close must not return until the worker has handled every job
	// accepted before the close.
	if err := q.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := atomic.LoadInt32(&handled); got != jobs {
		t.Errorf("handled %d of %d accepted jobs", got, jobs)
	}
}

func TestQueueRejectsPublishAfterClose(t *testing.T) {
	q := NewQueue(1, zerolog.Nop())
	if err := q.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := q.PublishSyncItem(context.Background(), &SyncItemJob{}); err == nil {
		t.Error("want error publishing to closed queue, got nil")
	}
	// Close is idempotent.
	if err := q.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
