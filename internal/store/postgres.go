package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/bloodwork/pkg/models"
	"github.com/mattn/go-sqlite3"
)

// PostgresStore implements ResultStore using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateResult(ctx context.Context, r *models.AnalysisResult) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO analysis_results (file_name, query, analysis, created_at, user_id)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		r.FileName, r.Query, r.Analysis, r.CreatedAt, r.UserID,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("create analysis result: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetResult(ctx context.Context, id int64) (*models.AnalysisResult, error) {
	var r models.AnalysisResult
	err := s.pool.QueryRow(ctx,
		`SELECT id, file_name, query, analysis, created_at, user_id
		 FROM analysis_results WHERE id = $1`, id,
	).Scan(&r.ID, &r.FileName, &r.Query, &r.Analysis, &r.CreatedAt, &r.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis result: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) ListResults(ctx context.Context, userID string, limit int) ([]models.ResultSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, file_name, query, created_at
		 FROM analysis_results WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list analysis results: %w", err)
	}
	defer rows.Close()

	results := []models.ResultSummary{}
	for rows.Next() {
		var r models.AnalysisResult
		if err := rows.Scan(&r.ID, &r.FileName, &r.Query, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analysis result: %w", err)
		}
		results = append(results, r.Summary())
	}
	return results, rows.Err()
}

// IsTransient reports whether err is worth retrying. For Postgres that is
// connection failures plus the error classes 08, 40, 53 and 57; for SQLite a
// busy or locked database.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code[:2] {
		case "08", "40", "53", "57":
			return true
		}
		return false
	}
	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}

var _ ResultStore = (*PostgresStore)(nil)
