package models

import "time"

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusComplete   = "complete"
	JobStatusFailed     = "failed"
)

// Job tracks one submitted analysis request. POST /analyze returns its ID as
// task_id; the client polls GET /results/{task_id} until status is complete or failed.
// Jobs live in the queue's own state and are not stored in the result store.
type Job struct {
	ID          string     `json:"id"`
	FilePath    string     `json:"file_path"`
	FileName    string     `json:"file_name"`
	Query       string     `json:"query"`
	UserID      *string    `json:"user_id,omitempty"`
	Status      string     `json:"status"`
	ResultID    *int64     `json:"result_id,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the job has reached complete or failed.
func (j *Job) IsTerminal() bool {
	return IsTerminalStatus(j.Status)
}

func IsTerminalStatus(status string) bool {
	return status == JobStatusComplete || status == JobStatusFailed
}
