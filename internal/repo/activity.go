package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/Skotchmaster/waterworks/internal/models"
)

type ActivityFilter struct {
	UserID *uint
	Action models.Action
	Table  string
}

func (r *GormRepo) CreateActivity(ctx context.Context, e *models.ActivityLog) error {
	return r.conn(ctx).Create(e).Error
}

func (r *GormRepo) ListActivity(ctx context.Context, f ActivityFilter, from, limit int) (int64, []models.ActivityLog, error) {
	q := r.conn(ctx).Model(&models.ActivityLog{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.Table != "" {
		q = q.Where("table_name = ?", f.Table)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var out []models.ActivityLog
	if err := q.Order("created_at DESC, id DESC").Offset(from).Limit(limit).Find(&out).Error; err != nil {
		return 0, nil, err
	}
	return total, out, nil
}
