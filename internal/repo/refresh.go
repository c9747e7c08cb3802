package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/squatlab/backend/internal/models"
)

func (r *GormRepo) SaveRefresh(ctx context.Context, t *models.RefreshToken) error {
	return r.DB.WithContext(ctx).Create(t).Error
}

func (r *GormRepo) ExistsByToken(ctx context.Context, tokenStr string) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token = ?", tokenStr).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// DeleteByToken is a no-op when the row is already gone.
func (r *GormRepo) DeleteByToken(ctx context.Context, tokenStr string) error {
	return r.DB.WithContext(ctx).
		Where("token = ?", tokenStr).
		Delete(&models.RefreshToken{}).Error
}

// RotateRefresh swaps the old row for the new one in a single transaction.
// The delete's row count decides the winner when two requests race on the
// same token: the loser sees zero rows and gets ErrNotFound.
func (r *GormRepo) RotateRefresh(ctx context.Context, oldToken string, newRow *models.RefreshToken) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("token = ?", oldToken).Delete(&models.RefreshToken{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Create(newRow).Error
	})
}
