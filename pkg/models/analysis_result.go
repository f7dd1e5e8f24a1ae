package models

import "time"

// AnalysisResult is the durable record of a successfully completed job.
// Analysis holds the JSON-serialized Report.
type AnalysisResult struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" db:"id"         json:"id"`
	FileName  string    `gorm:"size:255"                 db:"file_name"  json:"file_name"`
	Query     string    `gorm:"type:text"                db:"query"      json:"query"`
	Analysis  string    `gorm:"type:text"                db:"analysis"   json:"analysis"`
	CreatedAt time.Time `gorm:"index"                    db:"created_at" json:"created_at"`
	UserID    *string   `gorm:"index;size:255"           db:"user_id"    json:"user_id,omitempty"`
}

// TableName pins the gorm table to the one created by the SQL migrations.
func (AnalysisResult) TableName() string { return "analysis_results" }

// ResultSummary is the list-view projection of an AnalysisResult.
type ResultSummary struct {
	ID        int64     `json:"id"`
	FileName  string    `json:"file_name"`
	Query     string    `json:"query"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary drops the analysis payload.
func (r *AnalysisResult) Summary() ResultSummary {
	return ResultSummary{
		ID:        r.ID,
		FileName:  r.FileName,
		Query:     r.Query,
		CreatedAt: r.CreatedAt,
	}
}
