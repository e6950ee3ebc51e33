package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/vendalive/fulfillment/internal/models"
)

func (r *GormRepo) OpenRequirements(ctx context.Context, originBagID uint) ([]models.AttentionRequirement, error) {
	return openRequirements(r.DB.WithContext(ctx), originBagID)
}

// OpenRequirementsTx is the in-transaction variant used by bag status
// derivation during mutating flows.
func OpenRequirementsTx(tx *gorm.DB, originBagID uint) ([]models.AttentionRequirement, error) {
	return openRequirements(tx, originBagID)
}

func openRequirements(db *gorm.DB, originBagID uint) ([]models.AttentionRequirement, error) {
	var reqs []models.AttentionRequirement
	err := db.
		Where("origin_bag_id = ? AND resolved_at IS NULL", originBagID).
		Order("id ASC").
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

func (r *GormRepo) GetRequirement(ctx context.Context, reqID uint) (*models.AttentionRequirement, error) {
	var req models.AttentionRequirement
	err := r.DB.WithContext(ctx).First(&req, reqID).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}
