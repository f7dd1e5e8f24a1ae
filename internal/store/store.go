package store

import (
	"context"
	"errors"

	"github.com/kiranshivaraju/bloodwork/pkg/models"
)

var ErrNotFound = errors.New("resource not found")

// ResultStore is the data access interface for completed analyses.
// Implementations must be safe for concurrent use.
type ResultStore interface {
	Ping(ctx context.Context) error
	// CreateResult inserts r and sets its ID. A zero CreatedAt is set to now.
	CreateResult(ctx context.Context, r *models.AnalysisResult) error
	GetResult(ctx context.Context, id int64) (*models.AnalysisResult, error)
	// ListResults returns at most limit results for userID, newest first.
	ListResults(ctx context.Context, userID string, limit int) ([]models.ResultSummary, error)
	Close() error
}
