package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/kiranshivaraju/bloodwork/internal/queue"
	"github.com/kiranshivaraju/bloodwork/internal/store"
	"github.com/kiranshivaraju/bloodwork/internal/worker"
	"github.com/kiranshivaraju/bloodwork/pkg/models"
)

// --- mock stager ---

type mockStager struct {
	mu      sync.Mutex
	saved   map[string][]byte
	removed []string
	saveErr error
}

func newMockStager() *mockStager {
	return &mockStager{saved: map[string][]byte{}}
}

func (s *mockStager) Save(originalName string, r io.Reader) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path := "/staging/blood_test_report_" + strconv.Itoa(len(s.saved)) + ".pdf"
	s.saved[path] = b
	return path, nil
}

func (s *mockStager) Remove(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, path)
	return nil
}

// --- mock queue ---

type mockQueue struct {
	mu     sync.Mutex
	jobs   map[string]*models.Job
	order  []string
	err    error
	getErr error
	nextID int
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: map[string]*models.Job{}}
}

func (q *mockQueue) Enqueue(_ context.Context, job *models.Job) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	job.ID = "job-" + strconv.Itoa(q.nextID)
	cp := *job
	q.jobs[job.ID] = &cp
	q.order = append(q.order, job.ID)
	return job.ID, nil
}

func (q *mockQueue) Get(_ context.Context, id string) (*models.Job, error) {
	if q.getErr != nil {
		return nil, q.getErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return nil, queue.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (q *mockQueue) put(job *models.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[job.ID] = job
}

// --- mock analyzer ---

type mockAnalyzer struct {
	fn   func(req worker.Request) worker.Outcome
	reqs []worker.Request
}

func (a *mockAnalyzer) Analyze(_ context.Context, req worker.Request) worker.Outcome {
	a.reqs = append(a.reqs, req)
	return a.fn(req)
}

// --- mock results ---

type mockResults struct {
	results map[int64]*models.AnalysisResult
	list    []models.ResultSummary
	err     error

	gotUser  string
	gotLimit int
}

func (m *mockResults) GetResult(_ context.Context, id int64) (*models.AnalysisResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	r, ok := m.results[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return r, nil
}

func (m *mockResults) ListResults(_ context.Context, userID string, limit int) ([]models.ResultSummary, error) {
	m.gotUser, m.gotLimit = userID, limit
	if m.err != nil {
		return nil, m.err
	}
	return m.list, nil
}

var errBoom = errors.New("boom")

// --- helpers ---

type formFile struct {
	name    string
	content []byte
}

func multipartRequest(t *testing.T, file *formFile, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if file != nil {
		fw, err := mw.CreateFormFile("file", file.name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write(file.content)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	r := httptest.NewRequest(http.MethodPost, "/analyze", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v (body %q)", err, rec.Body.String())
	}
	return body
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rec)
	errObj, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error envelope in %q", rec.Body.String())
	}
	return errObj["code"].(string)
}
