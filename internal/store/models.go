package store

import "time"

// Analysis lifecycle states.
const (
	StatusCreated   = "created"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// AnalysisRecord is the audit row kept for one analysis.
type AnalysisRecord struct {
	ID            string `gorm:"primaryKey;size:64"`
	CorrelationID string `gorm:"size:128;index"`
	Shape         string `gorm:"size:32;index"`
	Status        string `gorm:"size:16;index"`
	RequestJSON   string `gorm:"type:text"`
	ResponseJSON  string `gorm:"type:text"`
	Error         string `gorm:"type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// TableName pins the table name across drivers.
func (AnalysisRecord) TableName() string {
	return "analyses"
}

// Terminal reports whether the record reached completed or failed.
func (r *AnalysisRecord) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}
