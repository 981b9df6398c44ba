package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when no audit record exists for an analysis id.
var ErrNotFound = errors.New("analysis not found")

// Database wraps the GORM DB handle and exposes the audit operations.
type Database struct {
	gorm   *gorm.DB
	driver string
	mu     sync.Mutex
}

// Open connects to Postgres when dsn is a postgres URL and otherwise treats dsn as an
// SQLite file path, creating its directory.
func Open(dsn string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}

	driver := "sqlite"
	var dialector gorm.Dialector
	if isPostgres(dsn) {
		driver = "postgres"
		dialector = postgres.Open(dsn)
	} else {
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if err := db.AutoMigrate(&AnalysisRecord{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if driver == "sqlite" {
		if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
			logrus.WithError(err).Warn("enable WAL mode")
		}
		if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
			logrus.WithError(err).Warn("set synchronous pragma")
		}
	}
	return &Database{gorm: db, driver: driver}, nil
}

func isPostgres(dsn string) bool {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	return strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://")
}

// Driver names the backing database, "sqlite" or "postgres".
func (d *Database) Driver() string {
	return d.driver
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the database answers.
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// RecordCreated stores a new analysis in the created state. A repeated id resets the row.
func (d *Database) RecordCreated(ctx context.Context, analysisID, correlationID, shape string, request []byte) error {
	if strings.TrimSpace(analysisID) == "" {
		return errors.New("analysis id is empty")
	}
	rec := &AnalysisRecord{
		ID:            analysisID,
		CorrelationID: correlationID,
		Shape:         shape,
		Status:        StatusCreated,
		RequestJSON:   string(request),
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"correlation_id", "shape", "status", "request_json", "response_json", "error", "completed_at", "updated_at"}),
	}).Create(rec).Error
}

// RecordCompleted marks the analysis completed and stores the response body.
func (d *Database) RecordCompleted(ctx context.Context, analysisID string, response []byte) error {
	now := time.Now().UTC()
	return d.finish(ctx, analysisID, map[string]any{
		"status":        StatusCompleted,
		"response_json": string(response),
		"completed_at":  &now,
	})
}

// RecordFailed marks the analysis failed with reason.
func (d *Database) RecordFailed(ctx context.Context, analysisID, reason string) error {
	now := time.Now().UTC()
	return d.finish(ctx, analysisID, map[string]any{
		"status":       StatusFailed,
		"error":        reason,
		"completed_at": &now,
	})
}

func (d *Database) finish(ctx context.Context, analysisID string, updates map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := d.gorm.WithContext(ctx).Model(&AnalysisRecord{}).
		Where("id = ?", analysisID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, analysisID)
	}
	return nil
}

// GetAnalysis loads the audit record of analysisID.
func (d *Database) GetAnalysis(ctx context.Context, analysisID string) (*AnalysisRecord, error) {
	var rec AnalysisRecord
	err := d.gorm.WithContext(ctx).Where("id = ?", analysisID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, analysisID)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CountByStatus returns the number of audit records per lifecycle state.
func (d *Database) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := d.gorm.WithContext(ctx).Model(&AnalysisRecord{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}
