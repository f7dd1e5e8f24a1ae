// Package queue is the job broker between the API and the workers. Job state
// lives next to the queue so the API can answer polls without a database.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/kiranshivaraju/bloodwork/pkg/models"
)

var (
	ErrJobNotFound = errors.New("job not found")
	// ErrJobFinished is returned when a terminal transition targets a job that
	// already completed or failed. Terminal state is written at most once.
	ErrJobFinished = errors.New("job already finished")
)

// Queue is the job broker interface. Implementations must be safe for
// concurrent use by the API and any number of workers.
type Queue interface {
	// Enqueue stores the job as pending and makes it available to workers.
	// An empty ID is filled in. The assigned ID is returned.
	Enqueue(ctx context.Context, job *models.Job) (string, error)
	// Dequeue claims the next pending job for workerID, waiting up to timeout.
	// It returns nil, nil when no job became available.
	Dequeue(ctx context.Context, workerID string, timeout time.Duration) (*models.Job, error)
	Get(ctx context.Context, id string) (*models.Job, error)
	Complete(ctx context.Context, id string, resultID int64) error
	Fail(ctx context.Context, id, message string) error
	// Requeue returns in-flight jobs claimed more than olderThan ago to the
	// pending list and reports how many were moved.
	Requeue(ctx context.Context, olderThan time.Duration) (int, error)
	// Release hands an in-flight job back to the pending list so another
	// worker can claim it. Releasing a job that is already pending is a no-op.
	Release(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// Counter backs request rate limiting.
type Counter interface {
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
}
