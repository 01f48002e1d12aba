package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/mostrador/internal/models"
)

// SubmissionLog records documents pushed to the ERP. Backed by Postgres in
// production; tests use an in-memory stand-in.
type SubmissionLog interface {
	Record(ctx context.Context, record *models.SubmissionRecord) error
	MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) error
	List(ctx context.Context, username string, limit, offset int) ([]models.SubmissionRecord, int64, error)
}

// GormSubmissionLog persists submission records through GORM.
type GormSubmissionLog struct {
	db *gorm.DB
}

// NewGormSubmissionLog wraps a database handle as a SubmissionLog.
func NewGormSubmissionLog(db *gorm.DB) *GormSubmissionLog {
	return &GormSubmissionLog{db: db}
}

func (l *GormSubmissionLog) Record(ctx context.Context, record *models.SubmissionRecord) error {
	return l.db.WithContext(ctx).Create(record).Error
}

func (l *GormSubmissionLog) MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) error {
	return l.db.WithContext(ctx).
		Model(&models.SubmissionRecord{}).
		Where("id = ?", id).
		Update("notified_at", at).Error
}

func (l *GormSubmissionLog) List(ctx context.Context, username string, limit, offset int) ([]models.SubmissionRecord, int64, error) {
	var total int64
	if err := l.db.WithContext(ctx).
		Model(&models.SubmissionRecord{}).
		Where("username = ?", username).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []models.SubmissionRecord
	if err := l.db.WithContext(ctx).
		Where("username = ?", username).
		Order("submitted_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
