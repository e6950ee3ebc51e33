package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/vendalive/fulfillment/internal/models"
	"github.com/vendalive/fulfillment/internal/repo"
)

// DeriveBagStatus is the pure bag-status derivation over the order row, its
// lines and the count of open attention requirements. Attention takes
// priority over cancellation: a bag with packed units awaiting removal never
// disappears silently, someone has to physically reconcile it first.
func DeriveBagStatus(o *models.Order, items []models.OrderItem, gifts []models.GiftItem, openRequirements int) string {
	var (
		activeLines        int
		pendingLines       int
		packedAny          bool
		unconfirmedRemoval bool
	)
	for _, it := range items {
		switch it.ItemStatus {
		case models.ItemCancelled, models.ItemRemoved, models.ItemExpired:
		default:
			activeLines++
		}
		if it.RemovalConfirmedCount < it.PendingRemovalCount {
			unconfirmedRemoval = true
		}
		switch it.SeparationStatus {
		case models.SepPending:
			pendingLines++
		case models.SepPacked:
			packedAny = true
		}
	}
	for _, g := range gifts {
		switch g.SeparationStatus {
		case models.SepPending:
			pendingLines++
		case models.SepPacked:
			packedAny = true
		}
	}

	// Attention is checked first: even a bag whose every line cancelled
	// still holds physically packed units until removal is confirmed.
	if openRequirements > 0 || unconfirmedRemoval {
		return models.BagAttention
	}
	if activeLines == 0 && !o.Committed {
		return models.BagCancelled
	}
	if o.CartStatus == models.CartCancelled {
		return models.BagCancelled
	}
	if pendingLines == 0 {
		return models.BagPacked
	}
	if !packedAny {
		return models.BagPending
	}
	return models.BagPacking
}

func deriveBagStatusTx(tx *gorm.DB, order *models.Order) (string, error) {
	reqs, err := repo.OpenRequirementsTx(tx, order.ID)
	if err != nil {
		return "", err
	}
	return DeriveBagStatus(order, order.Items, order.Gifts, len(reqs)), nil
}

// refreshCommitment re-derives the bag status after a packing mutation and
// latches Committed the first time the bag reaches packed.
func refreshCommitment(tx *gorm.DB, orderID uint) (string, error) {
	order, err := loadOrderTx(tx, orderID)
	if err != nil {
		return "", err
	}
	status, err := deriveBagStatusTx(tx, order)
	if err != nil {
		return "", err
	}
	if status == models.BagPacked && !order.Committed {
		if err := tx.Model(&models.Order{}).Where("id = ?", orderID).
			Update("committed", true).Error; err != nil {
			return "", err
		}
	}
	return status, nil
}

// AssignBagNumbers hands the next unused bag number to every eligible order
// of the event, in creation order. Numbers are never reused or renumbered;
// calling this again with no new orders is a no-op.
func (s *Service) AssignBagNumbers(ctx context.Context, eventID uint, actor models.Actor) (int, error) {
	assigned := 0

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var next int
		if err := tx.Model(&models.Order{}).
			Where("event_id = ?", eventID).
			Select("COALESCE(MAX(bag_number), 0)").
			Scan(&next).Error; err != nil {
			return err
		}

		var orders []models.Order
		if err := tx.Where("event_id = ? AND cart_status <> ? AND bag_number IS NULL", eventID, models.CartCancelled).
			Order("created_at ASC, id ASC").
			Find(&orders).Error; err != nil {
			return err
		}

		for _, o := range orders {
			next++
			if err := tx.Model(&models.Order{}).Where("id = ?", o.ID).
				Update("bag_number", next).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.OrderItem{}).
				Where("order_id = ? AND separation_status = ''", o.ID).
				Update("separation_status", models.SepPending).Error; err != nil {
				return err
			}
			assigned++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if assigned > 0 {
		s.publish(ctx, "bags_assigned", 0, actor, map[string]interface{}{
			"event_id": eventID,
			"assigned": assigned,
		})
	}
	return assigned, nil
}

// MarkItemPacked flips a pending line to packed and recomputes the bag.
func (s *Service) MarkItemPacked(ctx context.Context, itemID uint, actor models.Actor) (string, error) {
	var (
		bagStatus string
		orderID   uint
	)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := loadItemTx(tx, itemID)
		if err != nil {
			return err
		}
		orderID = item.OrderID
		if item.SeparationStatus != models.SepPending {
			return fmt.Errorf("%w: item %d is %s, not pending", ErrPrecondition, itemID, item.SeparationStatus)
		}

		res := tx.Model(&models.OrderItem{}).
			Where("id = ? AND separation_status = ?", itemID, models.SepPending).
			Update("separation_status", models.SepPacked)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: item %d changed concurrently", ErrConflict, itemID)
		}

		bagStatus, err = refreshCommitment(tx, item.OrderID)
		return err
	})
	if err != nil {
		return "", err
	}

	s.publish(ctx, "item_packed", orderID, actor, map[string]interface{}{
		"item_id":    itemID,
		"bag_status": bagStatus,
	})
	return bagStatus, nil
}

// MarkGiftPacked mirrors MarkItemPacked for the separate gift collection.
func (s *Service) MarkGiftPacked(ctx context.Context, giftID uint, actor models.Actor) (string, error) {
	var (
		bagStatus string
		orderID   uint
	)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var gift models.GiftItem
		if err := tx.First(&gift, giftID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if gift.SeparationStatus != models.SepPending {
			return fmt.Errorf("%w: gift %d is %s, not pending", ErrPrecondition, giftID, gift.SeparationStatus)
		}

		if err := tx.Model(&models.GiftItem{}).Where("id = ?", giftID).
			Update("separation_status", models.SepPacked).Error; err != nil {
			return err
		}

		orderID = gift.OrderID
		var err error
		bagStatus, err = refreshCommitment(tx, gift.OrderID)
		return err
	})
	if err != nil {
		return "", err
	}

	s.publish(ctx, "gift_packed", orderID, actor, map[string]interface{}{
		"gift_id":    giftID,
		"bag_status": bagStatus,
	})
	return bagStatus, nil
}

// MarkBagPacked packs every remaining pending line and gift of the bag.
func (s *Service) MarkBagPacked(ctx context.Context, orderID uint, actor models.Actor) (string, error) {
	var bagStatus string

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadOrderTx(tx, orderID); err != nil {
			return err
		}

		if err := tx.Model(&models.OrderItem{}).
			Where("order_id = ? AND separation_status = ?", orderID, models.SepPending).
			Update("separation_status", models.SepPacked).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.GiftItem{}).
			Where("order_id = ? AND separation_status = ?", orderID, models.SepPending).
			Update("separation_status", models.SepPacked).Error; err != nil {
			return err
		}

		var err error
		bagStatus, err = refreshCommitment(tx, orderID)
		return err
	})
	if err != nil {
		return "", err
	}

	s.publish(ctx, "bag_packed", orderID, actor, map[string]interface{}{"bag_status": bagStatus})
	return bagStatus, nil
}

// RecordLabel stores the artifacts of an external label/carrier call. The
// call is fallible and retryable; recording it commits the bag.
func (s *Service) RecordLabel(ctx context.Context, orderID uint, labelURL, trackingCode string, actor models.Actor) (*models.Order, error) {
	if strings.TrimSpace(labelURL) == "" && strings.TrimSpace(trackingCode) == "" {
		return nil, fmt.Errorf("%w: a label url or tracking code is required", ErrValidation)
	}

	now := s.now()
	var entry models.StatusHistoryEntry

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := loadOrderTx(tx, orderID)
		if err != nil {
			return err
		}
		if statusRank(order.OperationalStatus) < paidRank && order.OperationalStatus != models.StatusPendingData {
			return fmt.Errorf("%w: labels can only be recorded after payment", ErrPrecondition)
		}

		updates := map[string]interface{}{
			"needs_label_reprint": false,
			"committed":           true,
		}
		if labelURL != "" {
			updates["label_url"] = labelURL
			updates["label_printed_at"] = now
		}
		if trackingCode != "" {
			updates["tracking_code"] = trackingCode
		}

		if err := tx.Model(&models.Order{}).Where("id = ?", orderID).
			Updates(updates).Error; err != nil {
			return err
		}

		entry, err = appendHistory(tx, now, orderID, order.OperationalStatus, order.OperationalStatus, "shipping label recorded", actor.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.indexHistory(ctx, entry)
	s.publish(ctx, "label_recorded", orderID, actor, map[string]interface{}{
		"label_url":     labelURL,
		"tracking_code": trackingCode,
	})

	return s.GetOrder(ctx, orderID)
}

// ListBags returns the event's bags with their derived separation status.
func (s *Service) ListBags(ctx context.Context, eventID uint) ([]models.Order, error) {
	orders, err := s.Repo.ListBags(ctx, eventID)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		reqs, err := s.Repo.OpenRequirements(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].SeparationStatus = DeriveBagStatus(&orders[i], orders[i].Items, orders[i].Gifts, len(reqs))
	}
	return orders, nil
}

// GetOrder returns the order read model with its derived bag status.
func (s *Service) GetOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	order, err := s.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if order.BagNumber != nil {
		reqs, err := s.Repo.OpenRequirements(ctx, orderID)
		if err != nil {
			return nil, err
		}
		order.SeparationStatus = DeriveBagStatus(order, order.Items, order.Gifts, len(reqs))
	}
	return order, nil
}
