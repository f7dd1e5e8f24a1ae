package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/bloodwork/pkg/models"
	"github.com/redis/go-redis/v9"
)

// claimScript flips a freshly moved job from pending to processing. A job
// whose hash expired, or that was failed before dispatch, is dropped from the
// in-flight list instead.
var claimScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	redis.call('LREM', KEYS[2], 0, ARGV[1])
	return 0
end
if redis.call('HGET', KEYS[1], 'status') ~= 'pending' then
	redis.call('LREM', KEYS[2], 0, ARGV[1])
	return -1
end
redis.call('HSET', KEYS[1], 'status', 'processing', 'started_at', ARGV[2], 'started_ms', ARGV[3], 'worker_id', ARGV[4])
return 1
`)

// finishScript writes a terminal status once. KEYS: job, pending, processing.
// ARGV: id, status, completed_at, ttl_ms, field, value.
var finishScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
local status = redis.call('HGET', KEYS[1], 'status')
if status == 'complete' or status == 'failed' then
	return -1
end
redis.call('HSET', KEYS[1], 'status', ARGV[2], 'completed_at', ARGV[3], ARGV[5], ARGV[6])
redis.call('LREM', KEYS[2], 0, ARGV[1])
redis.call('LREM', KEYS[3], 0, ARGV[1])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

// requeueScript moves a stale in-flight job to the head of the pending list.
// KEYS: job, pending, processing. ARGV: id, cutoff (unix ms).
var requeueScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	redis.call('LREM', KEYS[3], 0, ARGV[1])
	return 0
end
if redis.call('HGET', KEYS[1], 'status') ~= 'processing' then
	redis.call('LREM', KEYS[3], 0, ARGV[1])
	return 0
end
local started = tonumber(redis.call('HGET', KEYS[1], 'started_ms') or '0')
if started > tonumber(ARGV[2]) then
	return 0
end
redis.call('HSET', KEYS[1], 'status', 'pending')
redis.call('HDEL', KEYS[1], 'started_at', 'started_ms', 'worker_id')
redis.call('LREM', KEYS[3], 0, ARGV[1])
redis.call('RPUSH', KEYS[2], ARGV[1])
return 1
`)

// releaseScript returns a claimed job to the pending list ahead of newer
// work. KEYS: job, pending, processing. ARGV: id.
var releaseScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	redis.call('LREM', KEYS[3], 0, ARGV[1])
	return 0
end
local status = redis.call('HGET', KEYS[1], 'status')
if status == 'complete' or status == 'failed' then
	return -1
end
if status == 'processing' then
	redis.call('HSET', KEYS[1], 'status', 'pending')
	redis.call('HDEL', KEYS[1], 'started_at', 'started_ms', 'worker_id')
	redis.call('LREM', KEYS[3], 0, ARGV[1])
	redis.call('RPUSH', KEYS[2], ARGV[1])
end
return 1
`)

// RedisQueue implements Queue with go-redis/v9. Jobs are hashes under
// job:<id>; ids move from queue:<name>:pending to queue:<name>:processing
// when claimed. Pending ids are pushed on the left and claimed from the right.
type RedisQueue struct {
	client *redis.Client
	name   string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisQueue creates a RedisQueue from a Redis URL. ttl bounds how long a
// job's state is kept after it completes or fails.
func NewRedisQueue(redisURL, name string, ttl time.Duration) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisQueue{
		client: redis.NewClient(opts),
		name:   name,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *RedisQueue) Enqueue(ctx context.Context, job *models.Job) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.Status = models.JobStatusPending
	if job.CreatedAt.IsZero() {
		job.CreatedAt = q.now().UTC()
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, JobKey(job.ID), jobFields(job))
	pipe.LPush(ctx, PendingKey(q.name), job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("enqueueing job: %w", err)
	}
	return job.ID, nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, workerID string, timeout time.Duration) (*models.Job, error) {
	id, err := q.client.BLMove(ctx, PendingKey(q.name), ProcessingKey(q.name), "RIGHT", "LEFT", timeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claiming job: %w", err)
	}

	now := q.now().UTC()
	claimed, err := claimScript.Run(ctx, q.client,
		[]string{JobKey(id), ProcessingKey(q.name)},
		id, now.Format(time.RFC3339Nano), now.UnixMilli(), workerID,
	).Int()
	if err != nil {
		return nil, fmt.Errorf("claiming job %s: %w", id, err)
	}
	if claimed != 1 {
		return nil, nil
	}

	return q.Get(ctx, id)
}

func (q *RedisQueue) Get(ctx context.Context, id string) (*models.Job, error) {
	fields, err := q.client.HGetAll(ctx, JobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting job %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, ErrJobNotFound
	}
	return jobFromHash(fields)
}

func (q *RedisQueue) Complete(ctx context.Context, id string, resultID int64) error {
	return q.finish(ctx, id, models.JobStatusComplete, "result_id", strconv.FormatInt(resultID, 10))
}

func (q *RedisQueue) Fail(ctx context.Context, id, message string) error {
	return q.finish(ctx, id, models.JobStatusFailed, "error", message)
}

func (q *RedisQueue) finish(ctx context.Context, id, status, field, value string) error {
	res, err := finishScript.Run(ctx, q.client,
		[]string{JobKey(id), PendingKey(q.name), ProcessingKey(q.name)},
		id, status, q.now().UTC().Format(time.RFC3339Nano), q.ttl.Milliseconds(), field, value,
	).Int()
	if err != nil {
		return fmt.Errorf("marking job %s %s: %w", id, status, err)
	}
	switch res {
	case 0:
		return ErrJobNotFound
	case -1:
		return ErrJobFinished
	}
	return nil
}

func (q *RedisQueue) Requeue(ctx context.Context, olderThan time.Duration) (int, error) {
	ids, err := q.client.LRange(ctx, ProcessingKey(q.name), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("listing in-flight jobs: %w", err)
	}

	cutoff := q.now().Add(-olderThan).UnixMilli()
	moved := 0
	for _, id := range ids {
		res, err := requeueScript.Run(ctx, q.client,
			[]string{JobKey(id), PendingKey(q.name), ProcessingKey(q.name)},
			id, cutoff,
		).Int()
		if err != nil {
			return moved, fmt.Errorf("requeueing job %s: %w", id, err)
		}
		moved += res
	}
	return moved, nil
}

func (q *RedisQueue) Release(ctx context.Context, id string) error {
	res, err := releaseScript.Run(ctx, q.client,
		[]string{JobKey(id), PendingKey(q.name), ProcessingKey(q.name)},
		id,
	).Int()
	if err != nil {
		return fmt.Errorf("releasing job %s: %w", id, err)
	}
	switch res {
	case 0:
		return ErrJobNotFound
	case -1:
		return ErrJobFinished
	}
	return nil
}

func (q *RedisQueue) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := q.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func jobFields(job *models.Job) map[string]any {
	fields := map[string]any{
		"id":         job.ID,
		"file_path":  job.FilePath,
		"file_name":  job.FileName,
		"query":      job.Query,
		"status":     job.Status,
		"created_at": job.CreatedAt.Format(time.RFC3339Nano),
	}
	if job.UserID != nil {
		fields["user_id"] = *job.UserID
	}
	return fields
}

func jobFromHash(h map[string]string) (*models.Job, error) {
	job := &models.Job{
		ID:       h["id"],
		FilePath: h["file_path"],
		FileName: h["file_name"],
		Query:    h["query"],
		Status:   h["status"],
		Error:    h["error"],
	}
	if v, ok := h["user_id"]; ok {
		job.UserID = &v
	}

	var err error
	if job.CreatedAt, err = time.Parse(time.RFC3339Nano, h["created_at"]); err != nil {
		return nil, fmt.Errorf("job %s: bad created_at: %w", job.ID, err)
	}
	if job.StartedAt, err = optionalTime(h["started_at"]); err != nil {
		return nil, fmt.Errorf("job %s: bad started_at: %w", job.ID, err)
	}
	if job.CompletedAt, err = optionalTime(h["completed_at"]); err != nil {
		return nil, fmt.Errorf("job %s: bad completed_at: %w", job.ID, err)
	}
	if v := h["result_id"]; v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("job %s: bad result_id: %w", job.ID, err)
		}
		job.ResultID = &id
	}
	return job, nil
}

func optionalTime(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Compile-time checks.
var (
	_ Queue   = (*RedisQueue)(nil)
	_ Counter = (*RedisQueue)(nil)
)
