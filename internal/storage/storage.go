// Package storage is the secondary, queryable history mirror: terminal
// tasks only, written by primary-key upsert and never deleted, independent
// of the hot-path tasks.json snapshot that the Persistence Store owns.
package storage

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"vidflow/internal/task"
)

// Storage wraps a gorm handle over a SQLite database file.
type Storage struct {
	DB *gorm.DB
}

// New opens (creating if absent) dataDir/history.db and migrates the schema.
func New(dataDir string) (*Storage, error) {
	path := filepath.Join(dataDir, "history.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	if err := db.AutoMigrate(&HistoryRecord{}, &DailyStat{}); err != nil {
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return &Storage{DB: db}, nil
}

// Close releases the underlying database connection.
func (s *Storage) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordTerminal mirrors a terminal task into history. Called by the
// Subprocess Controller on every terminal transition (crash-safe), and again
// for any still-live terminal tasks at graceful shutdown; the primary-key
// upsert on ID makes repeat calls for the same task idempotent.
func (s *Storage) RecordTerminal(v task.View, finishedAt string) error {
	rec := HistoryRecord{
		ID:           v.ID,
		URL:          v.URL,
		Title:        v.Title,
		Status:       string(v.Status),
		Progress:     v.Progress,
		FinalPath:    v.FinalPath,
		ErrorMessage: v.ErrorMessage,
		FinishedAt:   finishedAt,
	}
	return s.DB.Save(&rec).Error
}

// ListHistory returns terminal task records, most recent first.
func (s *Storage) ListHistory(limit int) ([]HistoryRecord, error) {
	var out []HistoryRecord
	q := s.DB.Order("finished_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("storage: list history: %w", err)
	}
	return out, nil
}

// IncrementDailyBytes upserts today's byte counter. Best-effort: analytics
// tracking never blocks or fails the download it is counting.
func (s *Storage) IncrementDailyBytes(n int64) {
	today := time.Now().Format("2006-01-02")
	s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"bytes": gorm.Expr("bytes + ?", n)}),
	}).Create(&DailyStat{Date: today, Bytes: n})
}

// IncrementDailyFiles upserts today's completed-file counter.
func (s *Storage) IncrementDailyFiles() {
	today := time.Now().Format("2006-01-02")
	s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"files": gorm.Expr("files + ?", 1)}),
	}).Create(&DailyStat{Date: today, Files: 1})
}

// GetTotalLifetime sums bytes across every tracked day.
func (s *Storage) GetTotalLifetime() (int64, error) {
	var total int64
	err := s.DB.Model(&DailyStat{}).Select("COALESCE(SUM(bytes), 0)").Row().Scan(&total)
	return total, err
}

// GetTotalFiles sums completed files across every tracked day.
func (s *Storage) GetTotalFiles() (int64, error) {
	var total int64
	err := s.DB.Model(&DailyStat{}).Select("COALESCE(SUM(files), 0)").Row().Scan(&total)
	return total, err
}

// GetDailyHistory returns the most recent `days` of daily stats.
func (s *Storage) GetDailyHistory(days int) ([]DailyStat, error) {
	var out []DailyStat
	err := s.DB.Order("date desc").Limit(days).Find(&out).Error
	return out, err
}
