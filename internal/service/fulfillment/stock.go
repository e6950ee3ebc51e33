package fulfillment

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vendalive/fulfillment/internal/models"
	"github.com/vendalive/fulfillment/pkg/redisguard"
)

// PaidEffects is the result of ApplyPaidEffects. A replay is not an error.
type PaidEffects struct {
	Applied          bool `json:"applied"`
	AlreadyProcessed bool `json:"already_processed"`
}

// ApplyPaidEffects decrements inventory for every confirmed line exactly
// once per order. It is invoked from at least three call sites for the same
// order (confirmation, admin approval, the write trigger), so the first call
// claims a unique marker row and every replay short-circuits on it. A redis
// marker, when configured, answers replays without touching the database;
// the marker row stays the source of truth.
func (s *Service) ApplyPaidEffects(ctx context.Context, orderID uint) (PaidEffects, error) {
	if s.RDB != nil {
		if done, err := redisguard.AlreadyApplied(ctx, s.RDB, orderID); err != nil {
			s.log().Warn("redis guard unavailable, falling back to db", "order_id", orderID, "error", err)
		} else if done {
			return PaidEffects{AlreadyProcessed: true}, nil
		}
	}

	var out PaidEffects
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := loadOrderTx(tx, orderID)
		if err != nil {
			return err
		}
		// Claiming the marker before payment would swallow the real
		// decrement later.
		if order.CartStatus != models.CartPaid {
			return fmt.Errorf("%w: order %d is not paid", ErrPrecondition, orderID)
		}
		res, err := applyPaidEffectsTx(tx, orderID, s.now())
		out = res
		return err
	})
	if err != nil {
		return PaidEffects{}, err
	}

	if out.Applied {
		s.markAppliedGuard(ctx, orderID)
	}
	return out, nil
}

// applyPaidEffectsTx runs inside the caller's transaction so the marker
// claim and the decrements commit or abort together.
func applyPaidEffectsTx(tx *gorm.DB, orderID uint, now time.Time) (PaidEffects, error) {
	marker := models.StockEffect{OrderID: orderID, AppliedAt: now}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		DoNothing: true,
	}).Create(&marker)
	if res.Error != nil {
		return PaidEffects{}, res.Error
	}
	if res.RowsAffected == 0 {
		return PaidEffects{AlreadyProcessed: true}, nil
	}

	var items []models.OrderItem
	if err := tx.Where("order_id = ? AND item_status = ?", orderID, models.ItemConfirmed).
		Find(&items).Error; err != nil {
		return PaidEffects{}, err
	}

	for _, it := range items {
		if err := tx.Model(&models.Product{}).
			Where("id = ?", it.ProductID).
			UpdateColumn("stock", gorm.Expr("stock - ?", it.Quantity)).Error; err != nil {
			return PaidEffects{}, err
		}
	}

	return PaidEffects{Applied: true}, nil
}

func (s *Service) markAppliedGuard(ctx context.Context, orderID uint) {
	if s.RDB == nil {
		return
	}
	if _, err := redisguard.MarkApplied(ctx, s.RDB, orderID); err != nil {
		s.log().Warn("redis guard mark failed", "order_id", orderID, "error", err)
	}
}
