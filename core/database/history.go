package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// SyncRecord is one persisted engine event.
type SyncRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	EventID   string    `gorm:"size:36;uniqueIndex" json:"event_id"`
	Type      string    `gorm:"size:32;index" json:"type"`
	Library   string    `gorm:"size:64;index" json:"library"`
	Since     int       `json:"since"`
	Version   int       `json:"version"`
	Success   bool      `json:"success"`
	Error     string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName pins the table name.
func (SyncRecord) TableName() string {
	return "sync_history"
}

// HistoryRepository stores and lists SyncRecords.
type HistoryRepository struct {
	db *gorm.DB
}

// NewHistoryRepository creates a repository on an open connection.
func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Migrate creates or updates the history table.
func (r *HistoryRepository) Migrate() error {
	if err := r.db.AutoMigrate(&SyncRecord{}); err != nil {
		return fmt.Errorf("failed to migrate sync history: %w", err)
	}
	return nil
}

// Record inserts one record.
func (r *HistoryRepository) Record(ctx context.Context, rec *SyncRecord) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to record %s event for %s: %w", rec.Type, rec.Library, err)
	}
	return nil
}

// Recent returns the newest records of a library, newest first.
func (r *HistoryRepository) Recent(ctx context.Context, library string, limit int) ([]SyncRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []SyncRecord
	err := r.db.WithContext(ctx).
		Where("library = ?", library).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list history for %s: %w", library, err)
	}
	return out, nil
}
