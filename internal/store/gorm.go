package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kiranshivaraju/bloodwork/pkg/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore implements ResultStore using GORM. It backs the sqlite://
// DATABASE_URL used for local runs.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open gorm connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// OpenSQLite opens (creating if needed) the SQLite database at path and
// migrates the schema. SQLite serializes writers, so the pool is limited to
// one connection; this also keeps ":memory:" databases shared.
func OpenSQLite(ctx context.Context, path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	sqlDB.SetMaxOpenConns(1)

	s := NewGormStore(db)
	if err := s.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the analysis_results table if it does not exist.
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&models.AnalysisResult{}); err != nil {
		return fmt.Errorf("migrate analysis_results: %w", err)
	}
	return nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) CreateResult(ctx context.Context, r *models.AnalysisResult) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("create analysis result: %w", err)
	}
	return nil
}

func (s *GormStore) GetResult(ctx context.Context, id int64) (*models.AnalysisResult, error) {
	var r models.AnalysisResult
	err := s.db.WithContext(ctx).First(&r, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis result: %w", err)
	}
	return &r, nil
}

func (s *GormStore) ListResults(ctx context.Context, userID string, limit int) ([]models.ResultSummary, error) {
	var rows []models.AnalysisResult
	err := s.db.WithContext(ctx).
		Select("id", "file_name", "query", "created_at").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list analysis results: %w", err)
	}

	results := make([]models.ResultSummary, 0, len(rows))
	for i := range rows {
		results = append(results, rows[i].Summary())
	}
	return results, nil
}

var _ ResultStore = (*GormStore)(nil)
