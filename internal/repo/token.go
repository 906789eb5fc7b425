package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/waterworks/internal/models"
)

func (r *GormRepo) CreateToken(ctx context.Context, t *models.AccessToken) error {
	return r.conn(ctx).Create(t).Error
}

func (r *GormRepo) TokenByID(ctx context.Context, id uint) (*models.AccessToken, error) {
	var tok models.AccessToken
	if err := r.conn(ctx).First(&tok, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &tok, nil
}

func (r *GormRepo) DeleteToken(ctx context.Context, id uint) (int64, error) {
	res := r.conn(ctx).Delete(&models.AccessToken{}, id)
	return res.RowsAffected, res.Error
}

func (r *GormRepo) DeleteUserTokens(ctx context.Context, userID uint) (int64, error) {
	res := r.conn(ctx).Where("user_id = ?", userID).Delete(&models.AccessToken{})
	return res.RowsAffected, res.Error
}

func (r *GormRepo) DeleteTokensByID(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.conn(ctx).Where("id IN ?", ids).Delete(&models.AccessToken{})
	return res.RowsAffected, res.Error
}

// TouchToken is last-write-wins; concurrent requests may race on it.
func (r *GormRepo) TouchToken(ctx context.Context, id uint, at time.Time) error {
	return r.conn(ctx).Model(&models.AccessToken{}).
		Where("id = ?", id).
		UpdateColumn("last_used_at", at).Error
}

func (r *GormRepo) CountUserTokens(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := r.conn(ctx).Model(&models.AccessToken{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

func (r *GormRepo) ExpiredTokens(ctx context.Context, now time.Time) ([]models.AccessToken, error) {
	var out []models.AccessToken
	err := r.conn(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Order("id").
		Find(&out).Error
	return out, err
}

// StaleTokens returns tokens whose last activity, or creation time when
// never used, is before cutoff.
func (r *GormRepo) StaleTokens(ctx context.Context, cutoff time.Time) ([]models.AccessToken, error) {
	var out []models.AccessToken
	err := r.conn(ctx).
		Where("(last_used_at IS NOT NULL AND last_used_at < ?) OR (last_used_at IS NULL AND created_at < ?)", cutoff, cutoff).
		Order("id").
		Find(&out).Error
	return out, err
}
