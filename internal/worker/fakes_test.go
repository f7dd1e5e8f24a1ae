package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/bloodwork/internal/queue"
	"github.com/kiranshivaraju/bloodwork/internal/store"
	"github.com/kiranshivaraju/bloodwork/pkg/models"
)

type fakeQueue struct {
	mu         sync.Mutex
	jobs       map[string]*models.Job
	pending    chan string
	dequeueErr error
	finishErr  error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{jobs: map[string]*models.Job{}, pending: make(chan string, 100)}
}

func (q *fakeQueue) Enqueue(_ context.Context, job *models.Job) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.Status = models.JobStatusPending
	cp := *job
	q.jobs[job.ID] = &cp
	q.pending <- job.ID
	return job.ID, nil
}

func (q *fakeQueue) Dequeue(ctx context.Context, _ string, timeout time.Duration) (*models.Job, error) {
	if q.dequeueErr != nil {
		return nil, q.dequeueErr
	}
	select {
	case id := <-q.pending:
		q.mu.Lock()
		defer q.mu.Unlock()
		j := q.jobs[id]
		j.Status = models.JobStatusProcessing
		cp := *j
		return &cp, nil
	case <-time.After(timeout):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *fakeQueue) Get(_ context.Context, id string) (*models.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return nil, queue.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (q *fakeQueue) finish(id, status string, apply func(*models.Job)) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.finishErr != nil {
		return q.finishErr
	}
	j, ok := q.jobs[id]
	if !ok {
		return queue.ErrJobNotFound
	}
	if j.IsTerminal() {
		return queue.ErrJobFinished
	}
	j.Status = status
	apply(j)
	return nil
}

func (q *fakeQueue) Complete(_ context.Context, id string, resultID int64) error {
	return q.finish(id, models.JobStatusComplete, func(j *models.Job) { j.ResultID = &resultID })
}

func (q *fakeQueue) Fail(_ context.Context, id, message string) error {
	return q.finish(id, models.JobStatusFailed, func(j *models.Job) { j.Error = message })
}

func (q *fakeQueue) Requeue(context.Context, time.Duration) (int, error) { return 0, nil }
func (q *fakeQueue) Ping(context.Context) error                          { return nil }

func (q *fakeQueue) Release(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return queue.ErrJobNotFound
	}
	if j.IsTerminal() {
		return queue.ErrJobFinished
	}
	if j.Status == models.JobStatusProcessing {
		j.Status = models.JobStatusPending
		q.pending <- id
	}
	return nil
}

func (q *fakeQueue) status(id string) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.jobs[id].Status
}

type fakeStore struct {
	mu      sync.Mutex
	results []*models.AnalysisResult
	errs    []error // returned by successive CreateResult calls
	calls   int
}

func (s *fakeStore) Ping(context.Context) error { return nil }
func (s *fakeStore) Close() error               { return nil }

func (s *fakeStore) CreateResult(_ context.Context, r *models.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return err
		}
	}
	r.ID = int64(len(s.results) + 1)
	s.results = append(s.results, r)
	return nil
}

func (s *fakeStore) GetResult(_ context.Context, id int64) (*models.AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.results {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeStore) ListResults(context.Context, string, int) ([]models.ResultSummary, error) {
	return nil, nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

type fakeExtractor struct {
	fn func(path string) (string, error)
}

func (e fakeExtractor) Extract(_ context.Context, path string) (string, error) {
	return e.fn(path)
}

func textExtractor(text string) fakeExtractor {
	return fakeExtractor{fn: func(string) (string, error) { return text, nil }}
}

type recordingRemover struct {
	mu      sync.Mutex
	removed []string
}

func (r *recordingRemover) Remove(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, path)
	return nil
}

var (
	_ queue.Queue       = (*fakeQueue)(nil)
	_ store.ResultStore = (*fakeStore)(nil)
)
