package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"societyhub/internal/errors"
	"societyhub/internal/model"
)

// ActivityLogRepository defines activity log persistence operations.
type ActivityLogRepository interface {
	CreateBatch(ctx context.Context, entries []model.ActivityEntry) error
	ListForResource(ctx context.Context, kind model.Kind, resourceID uuid.UUID) ([]model.ActivityEntry, error)
}

type activityLogRepository struct {
	db *gorm.DB
}

// NewActivityLogRepository creates a new activity log repository.
func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

// CreateBatch creates multiple activity entries in a single statement.
func (r *activityLogRepository) CreateBatch(ctx context.Context, entries []model.ActivityEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(entries, 100).Error; err != nil {
		return errors.StoreUnavailable("activity_log.create", err)
	}
	return nil
}

// ListForResource returns the history of one resource, oldest first.
func (r *activityLogRepository) ListForResource(ctx context.Context, kind model.Kind, resourceID uuid.UUID) ([]model.ActivityEntry, error) {
	var entries []model.ActivityEntry
	err := r.db.WithContext(ctx).
		Where("kind = ? AND resource_id = ?", kind, resourceID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, errors.StoreUnavailable("activity_log.list", err)
	}
	return entries, nil
}
